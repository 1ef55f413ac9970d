package school

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

var (
	// errors
	ErrLearnerNotFound     = errors.New("learner not found")
	ErrSchoolNotFound      = errors.New("school not found")
	ErrCourseNotFound      = errors.New("course not found")
	ErrModuleNotFound      = errors.New("module not found")
	ErrClassNotFound       = errors.New("class not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrOptionNotFound      = errors.New("option not found")
	ErrPointBonusNotFound  = errors.New("point bonus not found")
	ErrScenarioNotFound    = errors.New("scenario not found")
	ErrBadgeNotFound       = errors.New("participant badge not found")
	ErrSettingNotFound     = errors.New("setting not found")
)

type (
	LearnerFilter struct {
		IDs      []int
		Grades   []Grade
		SchoolID int
		IsActive *bool
	}

	ClassFilter struct {
		IDs      []int
		CourseID int
		IsActive *bool
	}

	ParticipantFilter struct {
		IDs        []int
		LearnerID  int
		ClassID    int
		CourseID   int
		IsActive   *bool
		JoinedFrom time.Time
	}

	QuestionFilter struct {
		ModuleID int
		State    QuestionState
	}

	// AnswerFilter applies AND operation on the set fields. From is inclusive, To is exclusive.
	AnswerFilter struct {
		ParticipantIDs []int
		QuestionID     int
		ModuleID       int
		Correct        *bool
		From           time.Time
		To             time.Time
	}

	// ScenarioFilter matches scenarios of a course for an event.
	// An invalid ModuleID only matches course-level scenarios (no module).
	ScenarioFilter struct {
		Event    string
		CourseID int
		ModuleID null.Int
	}

	GoldenEggFilter struct {
		CourseID int
		ClassID  null.Int // invalid: course-wide eggs only
		IsActive *bool
	}

	TeacherClassFilter struct {
		TeacherID int
		ClassIDs  []int
	}
)

type (
	LearnerRepository interface {
		CreateLearner(ctx context.Context, l Learner) (Learner, error)
		GetLearner(ctx context.Context, id int) (Learner, error)
		QueryLearners(ctx context.Context, filter LearnerFilter) ([]Learner, error)
		UpdateLearner(ctx context.Context, l Learner) (Learner, error)
	}

	OrganisationRepository interface {
		CreateOrganisation(ctx context.Context, o Organisation) (Organisation, error)
		CreateSchool(ctx context.Context, s School) (School, error)
		GetSchool(ctx context.Context, id int) (School, error)
	}

	CourseRepository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id int) (Course, error)
		GetCourseByName(ctx context.Context, name string) (Course, error)
		QueryCourses(ctx context.Context) ([]Course, error)
		CreateModule(ctx context.Context, m Module) (Module, error)
		GetModule(ctx context.Context, id int) (Module, error)
		LinkCourseModule(ctx context.Context, courseID, moduleID int) error
		QueryCourseModules(ctx context.Context, courseID int) ([]Module, error)
	}

	ClassRepository interface {
		CreateClass(ctx context.Context, c Class) (Class, error)
		GetClass(ctx context.Context, id int) (Class, error)
		GetClassByName(ctx context.Context, name string) (Class, error)
		QueryClasses(ctx context.Context, filter ClassFilter) ([]Class, error)
		UpdateClass(ctx context.Context, c Class) (Class, error)
	}

	ParticipantRepository interface {
		CreateParticipant(ctx context.Context, p Participant) (Participant, error)
		GetParticipant(ctx context.Context, id int) (Participant, error)
		QueryParticipants(ctx context.Context, filter ParticipantFilter) ([]Participant, error)
		UpdateParticipant(ctx context.Context, p Participant) (Participant, error)
	}

	ContentRepository interface {
		CreateQuestion(ctx context.Context, q Question) (Question, error)
		GetQuestion(ctx context.Context, id int) (Question, error)
		QueryQuestions(ctx context.Context, filter QuestionFilter) ([]Question, error)
		// SetQuestionsState updates the state of the given questions and returns the number updated.
		SetQuestionsState(ctx context.Context, state QuestionState, ids ...int) (int, error)
		CreateOption(ctx context.Context, o Option) (Option, error)
		GetOption(ctx context.Context, id int) (Option, error)
	}

	AnswerRepository interface {
		CreateAnswer(ctx context.Context, a Answer) (Answer, error)
		QueryAnswers(ctx context.Context, filter AnswerFilter) ([]Answer, error)
		CountAnswers(ctx context.Context, filter AnswerFilter) (int, error)
	}

	PointRepository interface {
		CreatePointGrant(ctx context.Context, g PointGrant) (PointGrant, error)
		SumPointGrants(ctx context.Context, participantID int) (int, error)
	}

	GamificationRepository interface {
		CreatePointBonus(ctx context.Context, b PointBonus) (PointBonus, error)
		GetPointBonus(ctx context.Context, id int) (PointBonus, error)
		CreateBadgeTemplate(ctx context.Context, b BadgeTemplate) (BadgeTemplate, error)
		CreateScenario(ctx context.Context, s Scenario) (Scenario, error)
		GetScenario(ctx context.Context, id int) (Scenario, error)
		QueryScenarios(ctx context.Context, filter ScenarioFilter) ([]Scenario, error)
		GetParticipantBadge(ctx context.Context, participantID, badgeID int) (ParticipantBadge, error)
		SaveParticipantBadge(ctx context.Context, b ParticipantBadge) (ParticipantBadge, error)
		CreateGoldenEgg(ctx context.Context, e GoldenEgg) (GoldenEgg, error)
		QueryGoldenEggs(ctx context.Context, filter GoldenEggFilter) ([]GoldenEgg, error)
		CreateGoldenEggRewardLog(ctx context.Context, l GoldenEggRewardLog) (GoldenEggRewardLog, error)
	}

	TeacherRepository interface {
		CreateTeacherClass(ctx context.Context, tc TeacherClass) (TeacherClass, error)
		QueryTeacherClasses(ctx context.Context, filter TeacherClassFilter) ([]TeacherClass, error)
	}

	SettingRepository interface {
		GetSetting(ctx context.Context, key string) (Setting, error)
		SaveSetting(ctx context.Context, s Setting) error
	}

	TaskLogRepository interface {
		CreateTaskLog(ctx context.Context, l TaskLog) (TaskLog, error)
		QueryTaskLogs(ctx context.Context, task string) ([]TaskLog, error)
	}

	// Repository is the full school store.
	Repository interface {
		LearnerRepository
		OrganisationRepository
		CourseRepository
		ClassRepository
		ParticipantRepository
		ContentRepository
		AnswerRepository
		PointRepository
		GamificationRepository
		TeacherRepository
		SettingRepository
		TaskLogRepository
	}
)
