// Package report builds the monthly class and module reports and emails them to teachers.
package report

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/school"
	"github.com/digitme/digit/core/user"
)

// TaskName identifies teacher report entries in the task log.
const TaskName = "teacher_report"

var nowFunc = func() time.Time { return time.Now().UTC() } // mockable

type (
	Repository interface {
		school.LearnerRepository
		school.CourseRepository
		school.ClassRepository
		school.ParticipantRepository
		school.AnswerRepository
		school.TeacherRepository
		school.TaskLogRepository
	}

	UserRepository interface {
		QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error)
	}

	FailedEmail struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Detail   string `json:"detail"`
	}

	Result struct {
		RunID         string        `json:"run_id"`
		LastMonth     time.Time     `json:"last_month"`
		Classes       int           `json:"classes"`
		Files         int           `json:"files"`
		Emailed       int           `json:"emailed"`
		FailedReports []string      `json:"failed_reports"`
		FailedEmails  []FailedEmail `json:"failed_emails"`
	}

	// teacherReports holds the report files of one teacher, grouped by format.
	teacherReports struct {
		teacher    user.User
		csvClass   []string
		csvModule  []string
		xlsxClass  []string
		xlsxModule []string
	}

	Service struct {
		repo     Repository
		users    UserRepository
		mailer   core.EmailService
		validate *validator.Validate
		conf     *core.Config
		logger   core.Logger
	}
)

func NewService(
	repo Repository, users UserRepository, mailer core.EmailService,
	validate *validator.Validate, conf *core.Config, logger core.Logger,
) (*Service, error) {
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(users, "users"),
		vala.IsNotNil(mailer, "mailer"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
	).Check()
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, users: users, mailer: mailer, validate: validate, conf: conf, logger: logger}, nil
}

// log writes msg to the task log and to the application logger.
func (svc *Service) log(ctx context.Context, msg string, success bool) {
	if success {
		svc.logger.Info(msg)
	} else {
		svc.logger.Error(msg)
	}
	_, err := svc.repo.CreateTaskLog(ctx, school.TaskLog{
		Task:     TaskName,
		Success:  success,
		Message:  msg,
		LoggedAt: nowFunc(),
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("saving task log: %v", err), err)
	}
}

// SendTeacherReports creates last month's class and module reports of every active class with an
// assigned teacher, emails them to the teachers and notifies the managers of any failure.
// Failures of a single report or email never stop the run. A cancelled ctx stops report creation,
// but the reports already written are emailed and the managers notified before the ctx error is returned.
func (svc *Service) SendTeacherReports(ctx context.Context) (Result, error) {
	lastMonth := LastMonth(nowFunc())
	res := Result{RunID: uuid.New().String(), LastMonth: lastMonth}

	teachers, links, err := svc.teachers(ctx)
	if err != nil {
		return res, err
	}
	classIDs := make([]int, 0, len(links))
	for id := range links {
		classIDs = append(classIDs, id)
	}
	sort.Ints(classIDs)

	var classes []school.Class
	if len(classIDs) > 0 {
		active := true
		if classes, err = svc.repo.QueryClasses(ctx, school.ClassFilter{IDs: classIDs, IsActive: &active}); err != nil {
			return res, errors.Wrap(err, "querying classes")
		}
	}

	failed := &failures{}
	var aborted error
	for i, class := range classes {
		if aborted = ctx.Err(); aborted != nil {
			// reports already written are still delivered
			ctx = context.WithoutCancel(ctx)
			svc.log(ctx, fmt.Sprintf("Report run aborted: %v", aborted), false)
			for _, c := range classes[i:] {
				failed.addReport(reportBase(svc.conf.MediaRoot, lastMonth, c.Name, "class"))
				failed.addReport(reportBase(svc.conf.MediaRoot, lastMonth, c.Name, "module"))
			}
			break
		}
		res.Classes++
		files := svc.classReports(ctx, class, lastMonth, failed)
		res.Files += files.count()
		for _, teacherID := range links[class.ID] {
			tr := teachers[teacherID]
			tr.csvClass = append(tr.csvClass, files.csvClass...)
			tr.csvModule = append(tr.csvModule, files.csvModule...)
			tr.xlsxClass = append(tr.xlsxClass, files.xlsxClass...)
			tr.xlsxModule = append(tr.xlsxModule, files.xlsxModule...)
		}
	}

	svc.log(ctx, "Emailing teachers.", true)
	month := lastMonth.Format("January")
	for _, id := range sortedKeys(teachers) {
		tr := teachers[id]
		if tr.count() == 0 {
			continue
		}
		if svc.emailTeacher(ctx, month, tr, failed) {
			res.Emailed++
		}
	}

	svc.notifyManagers(ctx, failed)
	res.FailedReports = failed.reports
	res.FailedEmails = failed.emails
	return res, aborted
}

// teachers returns the teachers with a valid email address keyed by id, and their ids keyed by class id.
func (svc *Service) teachers(ctx context.Context) (map[int]*teacherReports, map[int][]int, error) {
	links, err := svc.repo.QueryTeacherClasses(ctx, school.TeacherClassFilter{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying teacher classes")
	}
	if len(links) == 0 {
		return map[int]*teacherReports{}, map[int][]int{}, nil
	}

	ids := make([]int, 0, len(links))
	seen := make(map[int]bool, len(links))
	for _, tc := range links {
		if !seen[tc.TeacherID] {
			seen[tc.TeacherID] = true
			ids = append(ids, tc.TeacherID)
		}
	}
	users, err := svc.users.QueryUsers(ctx, user.QueryFilter{IDs: ids})
	if err != nil {
		return nil, nil, errors.Wrap(err, "querying teachers")
	}

	teachers := make(map[int]*teacherReports, len(users))
	for _, u := range users {
		if !u.IsTeacher() {
			continue
		}
		if !core.IsValidEmail(svc.validate, u.Email) {
			svc.logger.Warn(fmt.Sprintf("teacher %s has no valid email address", u.Username))
			continue
		}
		teachers[u.ID] = &teacherReports{teacher: u}
	}

	byClass := make(map[int][]int)
	for _, tc := range links {
		if _, ok := teachers[tc.TeacherID]; ok {
			byClass[tc.ClassID] = append(byClass[tc.ClassID], tc.TeacherID)
		}
	}
	return teachers, byClass, nil
}

func (tr *teacherReports) count() int {
	return len(tr.csvClass) + len(tr.csvModule) + len(tr.xlsxClass) + len(tr.xlsxModule)
}

func sortedKeys(m map[int]*teacherReports) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

type failures struct {
	reports []string
	emails  []FailedEmail
}

func (f *failures) addReport(name string) {
	for _, r := range f.reports {
		if r == name {
			return
		}
	}
	f.reports = append(f.reports, name)
}

func (svc *Service) notifyManagers(ctx context.Context, failed *failures) {
	if len(failed.reports) > 0 {
		svc.log(ctx, "Sending failed report email", true)
		var b strings.Builder
		b.WriteString("The system failed to create the following reports:\n\n")
		for _, r := range failed.reports {
			fmt.Fprintf(&b, "report: %s\n ", r)
		}
		svc.mailManagers(ctx, "DIG-IT: Teacher report creation failed.", b.String())
	}

	if len(failed.emails) > 0 {
		svc.log(ctx, "Sending failed emails email", true)
		var b strings.Builder
		b.WriteString("The system failed to email report to the following teachers:\n\n")
		for _, e := range failed.emails {
			fmt.Fprintf(&b, "username: %s\n email: %s\nError details: %s\n", e.Username, e.Email, e.Detail)
		}
		svc.mailManagers(ctx, "DIG-IT: Teacher report sending failed.", b.String())
	}
}

func (svc *Service) mailManagers(ctx context.Context, subject, body string) {
	if err := core.MailManagers(ctx, svc.mailer, svc.conf, subject, body); err != nil {
		svc.log(ctx, fmt.Sprintf("Error while sending email:\nmsg: %s\nError: %v", subject, err), false)
	}
}

func (svc *Service) emailTeacher(ctx context.Context, month string, tr *teacherReports, failed *failures) bool {
	t := tr.teacher
	svc.log(ctx, fmt.Sprintf("Sending email to teacher %s", t.Email), true)

	from := mail.Address{Address: svc.conf.ReportFromEmail}
	msg := &core.EmailMessage{
		From:    &from,
		To:      []mail.Address{{Name: t.Name, Address: t.Email}},
		Subject: fmt.Sprintf("dig-it report %s", month),
		Body:    fmt.Sprintf("Please find attached reports of your dig-it classes for %s.", month),
	}

	attach := func(paths []string, contentType string) {
		for _, path := range paths {
			if err := msg.AttachFile(path, contentType); err != nil {
				svc.log(ctx, fmt.Sprintf("Failed to attach report %s for teacher %s. Reason: %v", path, t.Username, err), false)
			}
		}
	}
	attach(tr.csvClass, ContentTypeCSV)
	attach(tr.csvModule, ContentTypeCSV)
	attach(tr.xlsxClass, ContentTypeXLSX)
	attach(tr.xlsxModule, ContentTypeXLSX)

	if err := svc.mailer.Send(ctx, msg); err != nil {
		svc.log(ctx, fmt.Sprintf("Failed to send email to teacher %s.\n%v", t.Username, err), false)
		failed.emails = append(failed.emails, FailedEmail{Username: t.Username, Email: t.Email, Detail: err.Error()})
		return false
	}
	return true
}
