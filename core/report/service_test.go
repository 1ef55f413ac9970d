package report_test

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/report"
	"github.com/digitme/digit/core/school"
	"github.com/digitme/digit/core/user"
	"github.com/digitme/digit/storage/database/dummy"
	"github.com/digitme/digit/testutil"
)

var now = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

type mailer struct {
	fail map[string]bool
	sent []*core.EmailMessage
}

func (m *mailer) Send(_ context.Context, msg *core.EmailMessage) error {
	for _, to := range msg.To {
		if m.fail[to.Address] {
			return fmt.Errorf("mailbox %s unavailable", to.Address)
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

// hookedRepo calls onLog with the message of every task log written.
type hookedRepo struct {
	school.Repository
	onLog func(msg string)
}

func (r *hookedRepo) CreateTaskLog(ctx context.Context, l school.TaskLog) (school.TaskLog, error) {
	if r.onLog != nil {
		r.onLog(l.Message)
	}
	return r.Repository.CreateTaskLog(ctx, l)
}

type fixture struct {
	svc      *report.Service
	repo     *hookedRepo
	users    user.Repository
	mailer   *mailer
	conf     *core.Config
	course   school.Course
	class    school.Class
	teacher  user.User
	question school.Question
}

// setup creates an active class taught by a teacher with a valid email address and one with an invalid one,
// plus an inactive class. Zoë answered 3 questions in February (2 correct) and 2 outside it (1 correct).
func setup(t *testing.T) *fixture {
	ctx := context.Background()
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := &hookedRepo{Repository: dummydb.NewSchoolRepository(db)}
	users := dummydb.NewUserRepository(db)

	conf := core.NewTestConfig()
	conf.MediaRoot = t.TempDir()
	m := &mailer{fail: map[string]bool{}}
	svc, err := report.NewService(repo, users, m, validator.New(), conf, &testutil.Logger{})
	require.NoError(t, err)

	course, class := testutil.CreateClass(t, repo, "Maths 1A")
	_, inactive := testutil.CreateClass(t, repo, "Maths 0")
	inactive.IsActive = false
	_, err = repo.UpdateClass(ctx, inactive)
	require.NoError(t, err)

	module, err := repo.CreateModule(ctx, school.Module{Name: "Algèbra", IsActive: true})
	require.NoError(t, err)
	require.NoError(t, repo.LinkCourseModule(ctx, course.ID, module.ID))

	teacher := testutil.CreateUser(t, users, "Mrs Dlamini", "dlamini", "dlamini@school.co.za", "", []string{user.RoleTeacher}, true)
	noEmail := testutil.CreateUser(t, users, "Mr Nkosi", "nkosi", "nkosi-at-school", "", []string{user.RoleTeacher}, true)
	for _, tc := range []school.TeacherClass{
		{TeacherID: teacher.ID, ClassID: class.ID},
		{TeacherID: noEmail.ID, ClassID: class.ID},
		{TeacherID: teacher.ID, ClassID: inactive.ID},
	} {
		_, err = repo.CreateTeacherClass(ctx, tc)
		require.NoError(t, err)
	}

	learner := testutil.CreateLearner(t, repo, "Zoë", school.Grade10, 0)
	p := testutil.CreateParticipant(t, repo, learner.ID, class.ID, true)
	q, _, _ := testutil.CreateQuestion(t, repo, module.ID, 1)
	answers := []school.Answer{
		{AnsweredAt: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), Correct: true},
		{AnsweredAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Correct: true},
		{AnsweredAt: time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC), Correct: true},
		{AnsweredAt: time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), Correct: false},
		{AnsweredAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Correct: false},
	}
	for _, a := range answers {
		a.ParticipantID = p.ID
		a.QuestionID = q.ID
		_, err = repo.CreateAnswer(ctx, a)
		require.NoError(t, err)
	}
	return &fixture{
		svc: svc, repo: repo, users: users, mailer: m, conf: conf,
		course: course, class: class, teacher: teacher, question: q,
	}
}

func readCSV(t *testing.T, path string) [][]string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestService_SendTeacherReports(t *testing.T) {
	ctx := context.Background()
	defer report.SetNow(now)()
	f := setup(t)

	res, err := f.svc.SendTeacherReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Classes)
	assert.Equal(t, 1, res.Emailed)
	assert.Equal(t, 4, res.Files)
	assert.Empty(t, res.FailedReports)
	assert.Empty(t, res.FailedEmails)
	assert.NotEmpty(t, res.RunID)

	classBase := filepath.Join(f.conf.MediaRoot, "2024_2_29_Maths 1A_class_report")
	moduleBase := filepath.Join(f.conf.MediaRoot, "2024_2_29_Maths 1A_module_report")

	assert.Equal(t, [][]string{
		report.ClassHeadings,
		{"Zo?", "3", "66", "5", "60"},
	}, readCSV(t, classBase+".csv"))
	assert.Equal(t, [][]string{
		report.ModuleHeadings,
		{"Alg?bra", "66", "60"},
	}, readCSV(t, moduleBase+".csv"))

	xlsx, err := excelize.OpenFile(classBase + ".xlsx")
	require.NoError(t, err)
	defer xlsx.Close()
	rows, err := xlsx.GetRows("Maths 1A_class_report")
	require.NoError(t, err)
	assert.Equal(t, [][]string{report.ClassHeadings, {"Zo?", "3", "66", "5", "60"}}, rows)

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, "dlamini@school.co.za", msg.To[0].Address)
	assert.Equal(t, "info@dig-it.me", msg.From.Address)
	assert.Equal(t, "dig-it report February", msg.Subject)
	assert.Equal(t, "Please find attached reports of your dig-it classes for February.", msg.Body)

	var attached []string
	for _, a := range msg.Attachments {
		attached = append(attached, a.Filename+" "+a.ContentType)
	}
	assert.Equal(t, []string{
		"2024_2_29_Maths 1A_class_report.csv " + report.ContentTypeCSV,
		"2024_2_29_Maths 1A_module_report.csv " + report.ContentTypeCSV,
		"2024_2_29_Maths 1A_class_report.xlsx " + report.ContentTypeXLSX,
		"2024_2_29_Maths 1A_module_report.xlsx " + report.ContentTypeXLSX,
	}, attached)

	logs, err := f.repo.QueryTaskLogs(ctx, report.TaskName)
	require.NoError(t, err)
	var msgs []string
	for _, l := range logs {
		assert.True(t, l.Success, l.Message)
		msgs = append(msgs, l.Message)
	}
	assert.Contains(t, msgs, "Emailing teachers.")
	assert.Contains(t, msgs, "Sending email to teacher dlamini@school.co.za")
	assert.Contains(t, msgs, "Report created: Maths 1A_class_report")
}

func TestService_SendTeacherReports_failedEmail(t *testing.T) {
	ctx := context.Background()
	defer report.SetNow(now)()
	f := setup(t)
	f.mailer.fail["dlamini@school.co.za"] = true

	res, err := f.svc.SendTeacherReports(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Emailed)
	require.Len(t, res.FailedEmails, 1)
	assert.Equal(t, "dlamini", res.FailedEmails[0].Username)
	assert.Equal(t, "mailbox dlamini@school.co.za unavailable", res.FailedEmails[0].Detail)

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, f.conf.Managers, msg.To)
	assert.Equal(t, "DIG-IT: Teacher report sending failed.", msg.Subject)
	assert.Equal(t,
		"The system failed to email report to the following teachers:\n\n"+
			"username: dlamini\n email: dlamini@school.co.za\nError details: mailbox dlamini@school.co.za unavailable\n",
		msg.Body,
	)
}

func TestService_SendTeacherReports_failedReports(t *testing.T) {
	ctx := context.Background()
	defer report.SetNow(now)()
	f := setup(t)
	f.conf.MediaRoot = filepath.Join(f.conf.MediaRoot, "missing")

	res, err := f.svc.SendTeacherReports(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Classes)
	assert.Zero(t, res.Emailed)

	classBase := filepath.Join(f.conf.MediaRoot, "2024_2_29_Maths 1A_class_report")
	moduleBase := filepath.Join(f.conf.MediaRoot, "2024_2_29_Maths 1A_module_report")
	assert.Equal(t, []string{classBase, moduleBase}, res.FailedReports)

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, "DIG-IT: Teacher report creation failed.", msg.Subject)
	assert.Equal(t,
		"The system failed to create the following reports:\n\n"+
			"report: "+classBase+"\n report: "+moduleBase+"\n ",
		msg.Body,
	)

	logs, err := f.repo.QueryTaskLogs(ctx, report.TaskName)
	require.NoError(t, err)
	var failures int
	for _, l := range logs {
		if !l.Success {
			failures++
		}
	}
	assert.Equal(t, 4, failures)
}

func TestService_SendTeacherReports_noTeachers(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	m := &mailer{}
	svc, err := report.NewService(
		dummydb.NewSchoolRepository(db), dummydb.NewUserRepository(db), m,
		validator.New(), core.NewTestConfig(), &testutil.Logger{},
	)
	require.NoError(t, err)

	res, err := svc.SendTeacherReports(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Classes)
	assert.Empty(t, m.sent)
}

func TestService_SendTeacherReports_cases(t *testing.T) {
	classBase := func(f *fixture, name string) string {
		return filepath.Join(f.conf.MediaRoot, "2024_2_29_"+name+"_class_report")
	}
	moduleBase := func(f *fixture, name string) string {
		return filepath.Join(f.conf.MediaRoot, "2024_2_29_"+name+"_module_report")
	}
	linkModule := func(t *testing.T, f *fixture, name string) school.Module {
		ctx := context.Background()
		m, err := f.repo.CreateModule(ctx, school.Module{Name: name, IsActive: true})
		require.NoError(t, err)
		require.NoError(t, f.repo.LinkCourseModule(ctx, f.course.ID, m.ID))
		return m
	}
	taskLogs := func(t *testing.T, f *fixture, success bool) []string {
		logs, err := f.repo.QueryTaskLogs(context.Background(), report.TaskName)
		require.NoError(t, err)
		var msgs []string
		for _, l := range logs {
			if l.Success == success {
				msgs = append(msgs, l.Message)
			}
		}
		return msgs
	}

	tests := []struct {
		name    string
		prepare func(t *testing.T, f *fixture, cancel context.CancelFunc)
		check   func(t *testing.T, f *fixture, res report.Result, err error)
	}{
		{
			name: "inactive participants are listed",
			prepare: func(t *testing.T, f *fixture, _ context.CancelFunc) {
				sipho := testutil.CreateLearner(t, f.repo, "Sipho", school.Grade10, 0)
				testutil.CreateParticipant(t, f.repo, sipho.ID, f.class.ID, false)
			},
			check: func(t *testing.T, f *fixture, res report.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, [][]string{
					report.ClassHeadings,
					{"Zo?", "3", "66", "5", "60"},
					{"Sipho", "0", "0", "0", "0"},
				}, readCSV(t, classBase(f, "Maths 1A")+".csv"))
			},
		},
		{
			name: "missing attachment is skipped",
			prepare: func(t *testing.T, f *fixture, _ context.CancelFunc) {
				f.repo.onLog = func(msg string) {
					if msg == "Emailing teachers." {
						require.NoError(t, os.Remove(classBase(f, "Maths 1A")+".csv"))
					}
				}
			},
			check: func(t *testing.T, f *fixture, res report.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, 1, res.Emailed)
				assert.Empty(t, res.FailedEmails)

				require.Len(t, f.mailer.sent, 1)
				var attached []string
				for _, a := range f.mailer.sent[0].Attachments {
					attached = append(attached, a.Filename)
				}
				assert.Equal(t, []string{
					"2024_2_29_Maths 1A_module_report.csv",
					"2024_2_29_Maths 1A_class_report.xlsx",
					"2024_2_29_Maths 1A_module_report.xlsx",
				}, attached)

				failed := taskLogs(t, f, false)
				require.Len(t, failed, 1)
				assert.True(t, strings.HasPrefix(failed[0],
					"Failed to attach report "+classBase(f, "Maths 1A")+".csv for teacher dlamini. Reason: "), failed[0])
			},
		},
		{
			name: "failed email does not stop the other teachers",
			prepare: func(t *testing.T, f *fixture, _ context.CancelFunc) {
				other := testutil.CreateUser(t, f.users, "Ms Mokoena", "mokoena", "mokoena@school.co.za", "", []string{user.RoleTeacher}, true)
				_, err := f.repo.CreateTeacherClass(context.Background(), school.TeacherClass{TeacherID: other.ID, ClassID: f.class.ID})
				require.NoError(t, err)
				f.mailer.fail[f.teacher.Email] = true
			},
			check: func(t *testing.T, f *fixture, res report.Result, err error) {
				require.NoError(t, err)
				assert.Equal(t, 1, res.Emailed)
				require.Len(t, res.FailedEmails, 1)
				assert.Equal(t, "dlamini", res.FailedEmails[0].Username)

				require.Len(t, f.mailer.sent, 2)
				assert.Equal(t, "mokoena@school.co.za", f.mailer.sent[0].To[0].Address)
				assert.Len(t, f.mailer.sent[0].Attachments, 4)
				assert.Equal(t, "DIG-IT: Teacher report sending failed.", f.mailer.sent[1].Subject)
			},
		},
		{
			name: "module percentage over a full class",
			prepare: func(t *testing.T, f *fixture, _ context.CancelFunc) {
				ctx := context.Background()
				geometry := linkModule(t, f, "Geometry")
				q, _, _ := testutil.CreateQuestion(t, f.repo, geometry.ID, 1)
				for i := 0; i < 10; i++ {
					l := testutil.CreateLearner(t, f.repo, fmt.Sprintf("Learner %d", i), school.Grade10, 0)
					p := testutil.CreateParticipant(t, f.repo, l.ID, f.class.ID, true)
					for j := 0; j < 15; j++ {
						_, err := f.repo.CreateAnswer(ctx, school.Answer{
							ParticipantID: p.ID,
							QuestionID:    q.ID,
							Correct:       (i*15+j)%7 < 4,
							AnsweredAt:    time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
						})
						require.NoError(t, err)
					}
				}
			},
			check: func(t *testing.T, f *fixture, res report.Result, err error) {
				require.NoError(t, err)
				// 87 of the 150 answers are correct
				assert.Equal(t, [][]string{
					report.ModuleHeadings,
					{"Alg?bra", "66", "60"},
					{"Geometry", "58", "58"},
				}, readCSV(t, moduleBase(f, "Maths 1A")+".csv"))

				records := readCSV(t, classBase(f, "Maths 1A")+".csv")
				require.Len(t, records, 12)
				assert.Equal(t, []string{"Learner 0", "15", "60", "15", "60"}, records[2])
			},
		},
		{
			name: "one row per course module",
			prepare: func(t *testing.T, f *fixture, _ context.CancelFunc) {
				linkModule(t, f, "Geometry")
				linkModule(t, f, "Trigonometry")
			},
			check: func(t *testing.T, f *fixture, res report.Result, err error) {
				require.NoError(t, err)
				modules, err := f.repo.QueryCourseModules(context.Background(), f.course.ID)
				require.NoError(t, err)
				records := readCSV(t, moduleBase(f, "Maths 1A")+".csv")
				assert.Len(t, records, len(modules)+1)
				assert.Equal(t, [][]string{
					report.ModuleHeadings,
					{"Alg?bra", "66", "60"},
					{"Geometry", "0", "0"},
					{"Trigonometry", "0", "0"},
				}, records)
			},
		},
		{
			name: "cancelled run still emails written reports",
			prepare: func(t *testing.T, f *fixture, cancel context.CancelFunc) {
				_, second := testutil.CreateClass(t, f.repo, "Maths 1B")
				_, err := f.repo.CreateTeacherClass(context.Background(), school.TeacherClass{TeacherID: f.teacher.ID, ClassID: second.ID})
				require.NoError(t, err)
				f.repo.onLog = func(msg string) {
					if msg == "Report created: Maths 1A_module_report" {
						cancel()
					}
				}
			},
			check: func(t *testing.T, f *fixture, res report.Result, err error) {
				assert.ErrorIs(t, err, context.Canceled)
				assert.Equal(t, 1, res.Classes)
				assert.Equal(t, 1, res.Emailed)
				assert.Equal(t, []string{classBase(f, "Maths 1B"), moduleBase(f, "Maths 1B")}, res.FailedReports)

				require.Len(t, f.mailer.sent, 2)
				assert.Equal(t, f.teacher.Email, f.mailer.sent[0].To[0].Address)
				assert.Len(t, f.mailer.sent[0].Attachments, 4)
				assert.Equal(t, "DIG-IT: Teacher report creation failed.", f.mailer.sent[1].Subject)

				assert.Contains(t, taskLogs(t, f, false), "Report run aborted: context canceled")
				assert.Contains(t, taskLogs(t, f, true), "Emailing teachers.")
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			defer report.SetNow(now)()
			f := setup(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			tc.prepare(t, f, cancel)

			res, err := f.svc.SendTeacherReports(ctx)
			tc.check(t, f, res, err)
		})
	}
}
