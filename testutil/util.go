// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/digitme/digit/core/school"
	"github.com/digitme/digit/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateLearner(t *testing.T, repo school.LearnerRepository, name string, grade school.Grade, schoolID int) school.Learner {
	l := school.Learner{
		FirstName:  name,
		Username:   name,
		Grade:      grade,
		IsActive:   true,
		DateJoined: time.Now().UTC(),
	}
	if schoolID != 0 {
		l.SchoolID = null.IntFrom(schoolID)
	}
	l, err := repo.CreateLearner(context.Background(), l)
	if err != nil {
		t.Fatalf("CreateLearner() failed: %v", err)
	}
	return l
}

func CreateSchool(t *testing.T, repo school.OrganisationRepository, name, province string) school.School {
	ctx := context.Background()
	org, err := repo.CreateOrganisation(ctx, school.Organisation{Name: name + " Trust"})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	s, err := repo.CreateSchool(ctx, school.School{OrganisationID: org.ID, Name: name, Province: province})
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return s
}

// CreateClass creates an active class in a new active course.
func CreateClass(t *testing.T, repo school.Repository, name string) (school.Course, school.Class) {
	ctx := context.Background()
	course, err := repo.CreateCourse(ctx, school.Course{Name: name + " Course", IsActive: true})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	class, err := repo.CreateClass(ctx, school.Class{CourseID: course.ID, Name: name, IsActive: true})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return course, class
}

func CreateParticipant(t *testing.T, repo school.ParticipantRepository, learnerID, classID int, active bool) school.Participant {
	p, err := repo.CreateParticipant(context.Background(), school.Participant{
		LearnerID:  learnerID,
		ClassID:    classID,
		IsActive:   active,
		DateJoined: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateParticipant() failed: %v", err)
	}
	return p
}

// CreateQuestion creates a published question of module with one correct and one wrong option.
func CreateQuestion(t *testing.T, repo school.ContentRepository, moduleID, points int) (q school.Question, right, wrong school.Option) {
	ctx := context.Background()
	q, err := repo.CreateQuestion(ctx, school.Question{
		ModuleID: moduleID,
		Name:     fmt.Sprintf("question %d", moduleID),
		Points:   points,
		State:    school.StatePublished,
	})
	if err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	if right, err = repo.CreateOption(ctx, school.Option{QuestionID: q.ID, Name: "right", Correct: true}); err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	if wrong, err = repo.CreateOption(ctx, school.Option{QuestionID: q.ID, Name: "wrong", Order: 1}); err != nil {
		t.Fatalf("CreateQuestion() failed: %v", err)
	}
	return q, right, wrong
}

type LogEntry struct {
	Level string
	Msg   string
}

// Logger records log entries.
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

func (l *Logger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg})
}

// Messages returns the logged messages of level, or of every level when level is empty.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msgs []string
	for _, e := range l.Entries {
		if level == "" || e.Level == level {
			msgs = append(msgs, e.Msg)
		}
	}
	return msgs
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.add("debug", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.add("info", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.add("warn", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.add("error", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.add("fatal", msg) }
