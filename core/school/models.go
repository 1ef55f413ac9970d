package school

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// Grades
type Grade string

const (
	Grade10  Grade = "Grade 10"
	Grade11  Grade = "Grade 11"
	Grade12  Grade = "Grade 12"
	Graduate Grade = "Graduate"
)

var (
	Grades = []Grade{Grade10, Grade11, Grade12, Graduate}

	// NonTerminalGrades are the grades a learner can still be promoted from.
	NonTerminalGrades = []Grade{Grade10, Grade11, Grade12}

	ErrInvalidGrade = errors.New("invalid grade")
)

func ParseGrade(s string) (Grade, error) {
	s = strings.TrimSpace(s)
	for _, g := range Grades {
		if strings.EqualFold(string(g), s) {
			return g, nil
		}
	}
	return "", errors.Wrapf(ErrInvalidGrade, "%q", s)
}

func (g Grade) index() int {
	for i, grade := range Grades {
		if grade == g {
			return i
		}
	}
	return -1
}

func (g Grade) Valid() bool      { return g.index() >= 0 }
func (g Grade) IsTerminal() bool { return g == Graduate }

// Next returns the grade following g. ok is false for Graduate and unknown grades.
func (g Grade) Next() (next Grade, ok bool) {
	i := g.index()
	if i < 0 || g.IsTerminal() {
		return g, false
	}
	return Grades[i+1], true
}

// Before reports whether g comes strictly before other.
func (g Grade) Before(other Grade) bool {
	return g.index() < other.index()
}

type Learner struct {
	ID            int       `json:"id" db:"id"`
	FirstName     string    `json:"first_name" db:"first_name"`
	LastName      string    `json:"last_name" db:"last_name"`
	Username      string    `json:"username" db:"username"`
	Mobile        string    `json:"mobile" db:"mobile"`
	Email         string    `json:"email" db:"email"`
	SchoolID      null.Int  `json:"school_id" db:"school_id"`
	Grade         Grade     `json:"grade" db:"grade"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	PromotedCycle int       `json:"promoted_cycle" db:"promoted_cycle"` // last grade-up cycle applied
	DateJoined    time.Time `json:"date_joined" db:"date_joined"`       // UTC
}

func (l Learner) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

type Organisation struct {
	ID      int    `json:"id" db:"id"`
	Name    string `json:"name" db:"name"`
	Website string `json:"website" db:"website"`
	Email   string `json:"email" db:"email"`
}

type School struct {
	ID             int    `json:"id" db:"id"`
	OrganisationID int    `json:"organisation_id" db:"organisation_id"`
	Name           string `json:"name" db:"name"`
	Province       string `json:"province" db:"province"`
}

// GradeClassName is the name of the class a school's learners join for a grade.
func (s School) GradeClassName(g Grade) string {
	return s.Name + " - " + string(g)
}

type Course struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	IsActive    bool   `json:"is_active" db:"is_active"`
}

type Module struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
	IsActive    bool   `json:"is_active" db:"is_active"`
}

type Class struct {
	ID          int       `json:"id" db:"id"`
	CourseID    int       `json:"course_id" db:"course_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Province    string    `json:"province" db:"province"`
	StartDate   null.Time `json:"start_date" db:"start_date"`
	EndDate     null.Time `json:"end_date" db:"end_date"`
	IsActive    bool      `json:"is_active" db:"is_active"`
}

type Participant struct {
	ID         int       `json:"id" db:"id"`
	LearnerID  int       `json:"learner_id" db:"learner_id"`
	ClassID    int       `json:"class_id" db:"class_id"`
	Points     int       `json:"points" db:"points"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	DateJoined time.Time `json:"date_joined" db:"date_joined"` // UTC
}

// Question states
type QuestionState int

const (
	StateIncomplete     QuestionState = 1
	StateReadyForReview QuestionState = 2
	StatePublished      QuestionState = 3
)

func (s QuestionState) String() string {
	switch s {
	case StateIncomplete:
		return "Incomplete"
	case StateReadyForReview:
		return "Ready for Review"
	case StatePublished:
		return "Published"
	}
	return "Unknown"
}

type Question struct {
	ID       int           `json:"id" db:"id"`
	ModuleID int           `json:"module_id" db:"module_id"`
	Name     string        `json:"name" db:"name"`
	Content  string        `json:"content" db:"content"`
	Points   int           `json:"points" db:"points"`
	State    QuestionState `json:"state" db:"state"`
	Order    int           `json:"order" db:"sort_order"`
}

type Option struct {
	ID         int    `json:"id" db:"id"`
	QuestionID int    `json:"question_id" db:"question_id"`
	Name       string `json:"name" db:"name"`
	Content    string `json:"content" db:"content"`
	Correct    bool   `json:"correct" db:"correct"`
	Order      int    `json:"order" db:"sort_order"`
}

// Answer is an immutable record of a participant answering a question.
type Answer struct {
	ID            int       `json:"id" db:"id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	QuestionID    int       `json:"question_id" db:"question_id"`
	OptionID      int       `json:"option_id" db:"option_id"`
	Correct       bool      `json:"correct" db:"correct"`
	AnsweredAt    time.Time `json:"answered_at" db:"answered_at"` // UTC
}

// Point grant sources
const (
	SourceAnswer    = "answer"
	SourceScenario  = "scenario"
	SourceGoldenEgg = "golden_egg"
)

// PointGrant is one entry of the points ledger. A participant's points are the sum of its grants.
type PointGrant struct {
	ID            int       `json:"id" db:"id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	Points        int       `json:"points" db:"points"`
	Source        string    `json:"source" db:"source"`
	SourceID      null.Int  `json:"source_id" db:"source_id"`
	GrantedAt     time.Time `json:"granted_at" db:"granted_at"`
}

type TeacherClass struct {
	ID        int `json:"id" db:"id"`
	TeacherID int `json:"teacher_id" db:"teacher_id"` // user.User ID
	ClassID   int `json:"class_id" db:"class_id"`
}

type Setting struct {
	Key   string `json:"key" db:"key"`
	Value string `json:"value" db:"value"`
}

// TaskLog is a persisted log line written by batch jobs.
type TaskLog struct {
	ID       int       `json:"id" db:"id"`
	Task     string    `json:"task" db:"task"`
	Success  bool      `json:"success" db:"success"`
	Message  string    `json:"message" db:"message"`
	LoggedAt time.Time `json:"logged_at" db:"logged_at"`
}

// Percentage is the floored share of correct answers, 0 when nothing was answered.
func Percentage(correct, answered int) int {
	if answered <= 0 {
		return 0
	}
	return correct * 100 / answered
}
