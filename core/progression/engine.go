// Package progression moves learners up one grade per cycle and re-enrolls them in their school's grade class.
package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/school"
)

var (
	ErrNoGradeCourse = errors.New("no course configured for grade")

	nowFunc = func() time.Time { return time.Now().UTC() } // mockable
)

type (
	// Repository is the part of the school store the engine works on.
	Repository interface {
		school.LearnerRepository
		school.OrganisationRepository
		school.CourseRepository
		school.ClassRepository
		school.ParticipantRepository
	}

	Result struct {
		Cycle     int `json:"cycle"`
		Promoted  int `json:"promoted"`
		Graduated int `json:"graduated"`
		Enrolled  int `json:"enrolled"`
		Skipped   int `json:"skipped"`
	}

	Engine struct {
		repo   Repository
		grades core.GradeConfig
		logger core.Logger
	}
)

func NewEngine(repo Repository, conf *core.Config, logger core.Logger) (*Engine, error) {
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
	).Check()
	if err != nil {
		return nil, err
	}
	return &Engine{repo: repo, grades: conf.Grades, logger: logger}, nil
}

// CurrentCycle is the default grade-up cycle: the calendar year.
func CurrentCycle() int {
	return nowFunc().Year()
}

// Run promotes every learner in a non-terminal grade that was not yet promoted in cycle.
// Running it twice for the same cycle is a no-op.
func (e *Engine) Run(ctx context.Context, cycle int) (Result, error) {
	res := Result{Cycle: cycle}

	learners, err := e.repo.QueryLearners(ctx, school.LearnerFilter{Grades: school.NonTerminalGrades})
	if err != nil {
		return res, errors.Wrap(err, "querying learners")
	}
	e.logger.Info(fmt.Sprintf("grade up cycle %d: %d candidate learners", cycle, len(learners)))

	for _, l := range learners {
		if err = ctx.Err(); err != nil {
			return res, err
		}
		if l.PromotedCycle >= cycle {
			res.Skipped++
			continue
		}
		next, enrolled, err := e.promote(ctx, l, cycle)
		if err != nil {
			return res, errors.Wrapf(err, "promoting learner %d", l.ID)
		}
		res.Promoted++
		if enrolled {
			res.Enrolled++
		}
		if next.IsTerminal() {
			res.Graduated++
		}
	}

	e.logger.Info(fmt.Sprintf("grade up cycle %d: %d promoted, %d graduated, %d skipped", cycle, res.Promoted, res.Graduated, res.Skipped))
	return res, nil
}

// promote advances l by one grade. The learner row is written last so that a failed promotion is retried on the next run.
func (e *Engine) promote(ctx context.Context, l school.Learner, cycle int) (next school.Grade, enrolled bool, err error) {
	next, ok := l.Grade.Next()
	if !ok {
		return l.Grade, false, errors.Wrapf(school.ErrInvalidGrade, "%q", l.Grade)
	}

	if err = e.deactivateParticipants(ctx, l.ID); err != nil {
		return l.Grade, false, err
	}

	if !next.IsTerminal() {
		if !l.SchoolID.Valid {
			e.logger.Warn(fmt.Sprintf("learner %d has no school: promoted to %s without a class", l.ID, next))
		} else {
			s, err := e.repo.GetSchool(ctx, l.SchoolID.Int)
			if err != nil {
				return l.Grade, false, errors.Wrap(err, "getting school")
			}
			class, err := e.GetOrCreateClass(ctx, next, s)
			if err != nil {
				return l.Grade, false, err
			}
			if err = e.enroll(ctx, l.ID, class.ID); err != nil {
				return l.Grade, false, err
			}
			enrolled = true
		}
	}

	l.Grade = next
	l.PromotedCycle = cycle
	if _, err = e.repo.UpdateLearner(ctx, l); err != nil {
		return l.Grade, false, errors.Wrap(err, "updating learner")
	}
	return next, enrolled, nil
}

func (e *Engine) deactivateParticipants(ctx context.Context, learnerID int) error {
	active := true
	participants, err := e.repo.QueryParticipants(ctx, school.ParticipantFilter{LearnerID: learnerID, IsActive: &active})
	if err != nil {
		return errors.Wrap(err, "querying active participants")
	}
	for _, p := range participants {
		p.IsActive = false
		if _, err = e.repo.UpdateParticipant(ctx, p); err != nil {
			return errors.Wrapf(err, "deactivating participant %d", p.ID)
		}
	}
	return nil
}

// enroll gets or creates the learner's participant in the class and makes it active.
func (e *Engine) enroll(ctx context.Context, learnerID, classID int) error {
	existing, err := e.repo.QueryParticipants(ctx, school.ParticipantFilter{LearnerID: learnerID, ClassID: classID})
	if err != nil {
		return errors.Wrap(err, "querying participant")
	}
	if len(existing) > 0 {
		p := existing[0]
		p.IsActive = true
		_, err = e.repo.UpdateParticipant(ctx, p)
		return errors.Wrap(err, "reactivating participant")
	}
	_, err = e.repo.CreateParticipant(ctx, school.Participant{
		LearnerID:  learnerID,
		ClassID:    classID,
		IsActive:   true,
		DateJoined: nowFunc(),
	})
	return errors.Wrap(err, "creating participant")
}

func (e *Engine) gradeCourseName(g school.Grade) (string, error) {
	switch g {
	case school.Grade10:
		return e.grades.Grade10Course, nil
	case school.Grade11:
		return e.grades.Grade11Course, nil
	case school.Grade12:
		return e.grades.Grade12Course, nil
	}
	return "", errors.Wrapf(ErrNoGradeCourse, "%q", g)
}

// GetOrCreateGradeCourse returns the course of grade g, creating it on first use.
func (e *Engine) GetOrCreateGradeCourse(ctx context.Context, g school.Grade) (school.Course, error) {
	name, err := e.gradeCourseName(g)
	if err != nil {
		return school.Course{}, err
	}
	course, err := e.repo.GetCourseByName(ctx, name)
	if errors.Cause(err) != school.ErrCourseNotFound {
		return course, errors.Wrap(err, "getting grade course")
	}
	e.logger.Info(fmt.Sprintf("creating grade course %q", name))
	course, err = e.repo.CreateCourse(ctx, school.Course{Name: name, IsActive: true})
	return course, errors.Wrap(err, "creating grade course")
}

// GetOrCreateClass returns the grade class of school s, creating it (and its course) on first use.
func (e *Engine) GetOrCreateClass(ctx context.Context, g school.Grade, s school.School) (school.Class, error) {
	name := s.GradeClassName(g)
	class, err := e.repo.GetClassByName(ctx, name)
	if errors.Cause(err) != school.ErrClassNotFound {
		return class, errors.Wrap(err, "getting grade class")
	}

	course, err := e.GetOrCreateGradeCourse(ctx, g)
	if err != nil {
		return school.Class{}, err
	}
	e.logger.Info(fmt.Sprintf("creating grade class %q", name))
	class, err = e.repo.CreateClass(ctx, school.Class{
		CourseID: course.ID,
		Name:     name,
		Province: s.Province,
		IsActive: true,
	})
	return class, errors.Wrap(err, "creating grade class")
}
