package dummydb

import (
	"context"
	"time"

	"github.com/digitme/digit/core/school"
)

type schoolRepository struct {
	db *DB
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func inWindow(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	return to.IsZero() || t.Before(to)
}

// learners

func (repo *schoolRepository) CreateLearner(_ context.Context, l school.Learner) (school.Learner, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	l.ID = repo.db.learners.nextPK()
	repo.db.learners.rows[l.ID] = l
	return l, nil
}

func (repo *schoolRepository) GetLearner(_ context.Context, id int) (school.Learner, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if l, ok := repo.db.learners.rows[id]; ok {
		return l, nil
	}
	return school.Learner{}, school.ErrLearnerNotFound
}

func (repo *schoolRepository) QueryLearners(_ context.Context, filter school.LearnerFilter) ([]school.Learner, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.learners.filter(func(l school.Learner) bool {
		if len(filter.IDs) > 0 && !containsInt(filter.IDs, l.ID) {
			return false
		}
		if len(filter.Grades) > 0 {
			var match bool
			for _, g := range filter.Grades {
				match = match || l.Grade == g
			}
			if !match {
				return false
			}
		}
		if filter.SchoolID != 0 && l.SchoolID.Int != filter.SchoolID {
			return false
		}
		return filter.IsActive == nil || l.IsActive == *filter.IsActive
	}), nil
}

func (repo *schoolRepository) UpdateLearner(_ context.Context, l school.Learner) (school.Learner, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if _, ok := repo.db.learners.rows[l.ID]; !ok {
		return school.Learner{}, school.ErrLearnerNotFound
	}
	repo.db.learners.rows[l.ID] = l
	return l, nil
}

// organisations

func (repo *schoolRepository) CreateOrganisation(_ context.Context, o school.Organisation) (school.Organisation, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	o.ID = repo.db.organisations.nextPK()
	repo.db.organisations.rows[o.ID] = o
	return o, nil
}

func (repo *schoolRepository) CreateSchool(_ context.Context, s school.School) (school.School, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	s.ID = repo.db.schools.nextPK()
	repo.db.schools.rows[s.ID] = s
	return s, nil
}

func (repo *schoolRepository) GetSchool(_ context.Context, id int) (school.School, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if s, ok := repo.db.schools.rows[id]; ok {
		return s, nil
	}
	return school.School{}, school.ErrSchoolNotFound
}

// courses

func (repo *schoolRepository) CreateCourse(_ context.Context, c school.Course) (school.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	c.ID = repo.db.courses.nextPK()
	repo.db.courses.rows[c.ID] = c
	return c, nil
}

func (repo *schoolRepository) GetCourse(_ context.Context, id int) (school.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if c, ok := repo.db.courses.rows[id]; ok {
		return c, nil
	}
	return school.Course{}, school.ErrCourseNotFound
}

func (repo *schoolRepository) GetCourseByName(_ context.Context, name string) (school.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	for _, c := range repo.db.courses.all() {
		if c.Name == name {
			return c, nil
		}
	}
	return school.Course{}, school.ErrCourseNotFound
}

func (repo *schoolRepository) QueryCourses(context.Context) ([]school.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.courses.all(), nil
}

func (repo *schoolRepository) CreateModule(_ context.Context, m school.Module) (school.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	m.ID = repo.db.modules.nextPK()
	repo.db.modules.rows[m.ID] = m
	return m, nil
}

func (repo *schoolRepository) GetModule(_ context.Context, id int) (school.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if m, ok := repo.db.modules.rows[id]; ok {
		return m, nil
	}
	return school.Module{}, school.ErrModuleNotFound
}

func (repo *schoolRepository) LinkCourseModule(_ context.Context, courseID, moduleID int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if _, ok := repo.db.courses.rows[courseID]; !ok {
		return school.ErrCourseNotFound
	}
	if _, ok := repo.db.modules.rows[moduleID]; !ok {
		return school.ErrModuleNotFound
	}
	link := courseModule{courseID: courseID, moduleID: moduleID}
	for _, cm := range repo.db.courseModules.all() {
		if cm == link {
			return nil
		}
	}
	repo.db.courseModules.rows[repo.db.courseModules.nextPK()] = link
	return nil
}

func (repo *schoolRepository) QueryCourseModules(_ context.Context, courseID int) ([]school.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	var modules []school.Module
	for _, cm := range repo.db.courseModules.all() {
		if cm.courseID == courseID {
			modules = append(modules, repo.db.modules.rows[cm.moduleID])
		}
	}
	return modules, nil
}

// classes

func (repo *schoolRepository) CreateClass(_ context.Context, c school.Class) (school.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	c.ID = repo.db.classes.nextPK()
	repo.db.classes.rows[c.ID] = c
	return c, nil
}

func (repo *schoolRepository) GetClass(_ context.Context, id int) (school.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if c, ok := repo.db.classes.rows[id]; ok {
		return c, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) GetClassByName(_ context.Context, name string) (school.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	for _, c := range repo.db.classes.all() {
		if c.Name == name {
			return c, nil
		}
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) QueryClasses(_ context.Context, filter school.ClassFilter) ([]school.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.classes.filter(func(c school.Class) bool {
		if len(filter.IDs) > 0 && !containsInt(filter.IDs, c.ID) {
			return false
		}
		if filter.CourseID != 0 && c.CourseID != filter.CourseID {
			return false
		}
		return filter.IsActive == nil || c.IsActive == *filter.IsActive
	}), nil
}

func (repo *schoolRepository) UpdateClass(_ context.Context, c school.Class) (school.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if _, ok := repo.db.classes.rows[c.ID]; !ok {
		return school.Class{}, school.ErrClassNotFound
	}
	repo.db.classes.rows[c.ID] = c
	return c, nil
}

// participants

func (repo *schoolRepository) CreateParticipant(_ context.Context, p school.Participant) (school.Participant, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	p.ID = repo.db.participants.nextPK()
	repo.db.participants.rows[p.ID] = p
	return p, nil
}

func (repo *schoolRepository) GetParticipant(_ context.Context, id int) (school.Participant, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if p, ok := repo.db.participants.rows[id]; ok {
		return p, nil
	}
	return school.Participant{}, school.ErrParticipantNotFound
}

func (repo *schoolRepository) QueryParticipants(_ context.Context, filter school.ParticipantFilter) ([]school.Participant, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.participants.filter(func(p school.Participant) bool {
		if len(filter.IDs) > 0 && !containsInt(filter.IDs, p.ID) {
			return false
		}
		if filter.LearnerID != 0 && p.LearnerID != filter.LearnerID {
			return false
		}
		if filter.ClassID != 0 && p.ClassID != filter.ClassID {
			return false
		}
		if filter.CourseID != 0 && repo.db.classes.rows[p.ClassID].CourseID != filter.CourseID {
			return false
		}
		if !filter.JoinedFrom.IsZero() && p.DateJoined.Before(filter.JoinedFrom) {
			return false
		}
		return filter.IsActive == nil || p.IsActive == *filter.IsActive
	}), nil
}

func (repo *schoolRepository) UpdateParticipant(_ context.Context, p school.Participant) (school.Participant, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if _, ok := repo.db.participants.rows[p.ID]; !ok {
		return school.Participant{}, school.ErrParticipantNotFound
	}
	repo.db.participants.rows[p.ID] = p
	return p, nil
}

// content

func (repo *schoolRepository) CreateQuestion(_ context.Context, q school.Question) (school.Question, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	q.ID = repo.db.questions.nextPK()
	repo.db.questions.rows[q.ID] = q
	return q, nil
}

func (repo *schoolRepository) GetQuestion(_ context.Context, id int) (school.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if q, ok := repo.db.questions.rows[id]; ok {
		return q, nil
	}
	return school.Question{}, school.ErrQuestionNotFound
}

func (repo *schoolRepository) QueryQuestions(_ context.Context, filter school.QuestionFilter) ([]school.Question, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.questions.filter(func(q school.Question) bool {
		if filter.ModuleID != 0 && q.ModuleID != filter.ModuleID {
			return false
		}
		return filter.State == 0 || q.State == filter.State
	}), nil
}

func (repo *schoolRepository) SetQuestionsState(_ context.Context, state school.QuestionState, ids ...int) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	var n int
	for _, id := range ids {
		if q, ok := repo.db.questions.rows[id]; ok {
			q.State = state
			repo.db.questions.rows[id] = q
			n++
		}
	}
	return n, nil
}

func (repo *schoolRepository) CreateOption(_ context.Context, o school.Option) (school.Option, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	o.ID = repo.db.options.nextPK()
	repo.db.options.rows[o.ID] = o
	return o, nil
}

func (repo *schoolRepository) GetOption(_ context.Context, id int) (school.Option, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if o, ok := repo.db.options.rows[id]; ok {
		return o, nil
	}
	return school.Option{}, school.ErrOptionNotFound
}

// answers

func (repo *schoolRepository) CreateAnswer(_ context.Context, a school.Answer) (school.Answer, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	a.ID = repo.db.answers.nextPK()
	repo.db.answers.rows[a.ID] = a
	return a, nil
}

func (repo *schoolRepository) queryAnswers(filter school.AnswerFilter) []school.Answer {
	return repo.db.answers.filter(func(a school.Answer) bool {
		if len(filter.ParticipantIDs) > 0 && !containsInt(filter.ParticipantIDs, a.ParticipantID) {
			return false
		}
		if filter.QuestionID != 0 && a.QuestionID != filter.QuestionID {
			return false
		}
		if filter.ModuleID != 0 && repo.db.questions.rows[a.QuestionID].ModuleID != filter.ModuleID {
			return false
		}
		if filter.Correct != nil && a.Correct != *filter.Correct {
			return false
		}
		return inWindow(a.AnsweredAt, filter.From, filter.To)
	})
}

func (repo *schoolRepository) QueryAnswers(_ context.Context, filter school.AnswerFilter) ([]school.Answer, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.queryAnswers(filter), nil
}

func (repo *schoolRepository) CountAnswers(_ context.Context, filter school.AnswerFilter) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return len(repo.queryAnswers(filter)), nil
}

// points

func (repo *schoolRepository) CreatePointGrant(_ context.Context, g school.PointGrant) (school.PointGrant, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	g.ID = repo.db.pointGrants.nextPK()
	repo.db.pointGrants.rows[g.ID] = g
	return g, nil
}

func (repo *schoolRepository) SumPointGrants(_ context.Context, participantID int) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	var total int
	for _, g := range repo.db.pointGrants.rows {
		if g.ParticipantID == participantID {
			total += g.Points
		}
	}
	return total, nil
}

// gamification

func (repo *schoolRepository) CreatePointBonus(_ context.Context, b school.PointBonus) (school.PointBonus, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	b.ID = repo.db.pointBonuses.nextPK()
	repo.db.pointBonuses.rows[b.ID] = b
	return b, nil
}

func (repo *schoolRepository) GetPointBonus(_ context.Context, id int) (school.PointBonus, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if b, ok := repo.db.pointBonuses.rows[id]; ok {
		return b, nil
	}
	return school.PointBonus{}, school.ErrPointBonusNotFound
}

func (repo *schoolRepository) CreateBadgeTemplate(_ context.Context, b school.BadgeTemplate) (school.BadgeTemplate, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	b.ID = repo.db.badgeTemplates.nextPK()
	repo.db.badgeTemplates.rows[b.ID] = b
	return b, nil
}

func (repo *schoolRepository) CreateScenario(_ context.Context, s school.Scenario) (school.Scenario, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	s.ID = repo.db.scenarios.nextPK()
	repo.db.scenarios.rows[s.ID] = s
	return s, nil
}

func (repo *schoolRepository) GetScenario(_ context.Context, id int) (school.Scenario, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if s, ok := repo.db.scenarios.rows[id]; ok {
		return s, nil
	}
	return school.Scenario{}, school.ErrScenarioNotFound
}

func (repo *schoolRepository) QueryScenarios(_ context.Context, filter school.ScenarioFilter) ([]school.Scenario, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.scenarios.filter(func(s school.Scenario) bool {
		if filter.Event != "" && s.Event != filter.Event {
			return false
		}
		if filter.CourseID != 0 && s.CourseID.Int != filter.CourseID {
			return false
		}
		if filter.ModuleID.Valid {
			return s.ModuleID.Valid && s.ModuleID.Int == filter.ModuleID.Int
		}
		return !s.ModuleID.Valid
	}), nil
}

func (repo *schoolRepository) GetParticipantBadge(_ context.Context, participantID, badgeID int) (school.ParticipantBadge, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	for _, b := range repo.db.participantBadges.all() {
		if b.ParticipantID == participantID && b.BadgeID == badgeID {
			return b, nil
		}
	}
	return school.ParticipantBadge{}, school.ErrBadgeNotFound
}

func (repo *schoolRepository) SaveParticipantBadge(_ context.Context, b school.ParticipantBadge) (school.ParticipantBadge, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if b.ID == 0 {
		b.ID = repo.db.participantBadges.nextPK()
	}
	repo.db.participantBadges.rows[b.ID] = b
	return b, nil
}

func (repo *schoolRepository) CreateGoldenEgg(_ context.Context, e school.GoldenEgg) (school.GoldenEgg, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	e.ID = repo.db.goldenEggs.nextPK()
	repo.db.goldenEggs.rows[e.ID] = e
	return e, nil
}

func (repo *schoolRepository) QueryGoldenEggs(_ context.Context, filter school.GoldenEggFilter) ([]school.GoldenEgg, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.goldenEggs.filter(func(e school.GoldenEgg) bool {
		if filter.CourseID != 0 && e.CourseID != filter.CourseID {
			return false
		}
		if filter.ClassID.Valid != e.ClassID.Valid || (filter.ClassID.Valid && e.ClassID.Int != filter.ClassID.Int) {
			return false
		}
		return filter.IsActive == nil || e.IsActive == *filter.IsActive
	}), nil
}

func (repo *schoolRepository) CreateGoldenEggRewardLog(_ context.Context, l school.GoldenEggRewardLog) (school.GoldenEggRewardLog, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	l.ID = repo.db.goldenEggLogs.nextPK()
	repo.db.goldenEggLogs.rows[l.ID] = l
	return l, nil
}

// teachers

func (repo *schoolRepository) CreateTeacherClass(_ context.Context, tc school.TeacherClass) (school.TeacherClass, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	tc.ID = repo.db.teacherClasses.nextPK()
	repo.db.teacherClasses.rows[tc.ID] = tc
	return tc, nil
}

func (repo *schoolRepository) QueryTeacherClasses(_ context.Context, filter school.TeacherClassFilter) ([]school.TeacherClass, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.teacherClasses.filter(func(tc school.TeacherClass) bool {
		if filter.TeacherID != 0 && tc.TeacherID != filter.TeacherID {
			return false
		}
		return len(filter.ClassIDs) == 0 || containsInt(filter.ClassIDs, tc.ClassID)
	}), nil
}

// settings

func (repo *schoolRepository) GetSetting(_ context.Context, key string) (school.Setting, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if v, ok := repo.db.settings[key]; ok {
		return school.Setting{Key: key, Value: v}, nil
	}
	return school.Setting{}, school.ErrSettingNotFound
}

func (repo *schoolRepository) SaveSetting(_ context.Context, s school.Setting) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.settings[s.Key] = s.Value
	return nil
}

// task logs

func (repo *schoolRepository) CreateTaskLog(_ context.Context, l school.TaskLog) (school.TaskLog, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	l.ID = repo.db.taskLogs.nextPK()
	repo.db.taskLogs.rows[l.ID] = l
	return l, nil
}

func (repo *schoolRepository) QueryTaskLogs(_ context.Context, task string) ([]school.TaskLog, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.taskLogs.filter(func(l school.TaskLog) bool {
		return task == "" || l.Task == task
	}), nil
}
