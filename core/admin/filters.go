// Package admin holds the list filters and bulk actions of the administration surface.
package admin

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/school"
)

const (
	AirtimeAward      = "airtime_award"
	airtimeMinCorrect = 12
)

var nowFunc = func() time.Time { return time.Now().UTC() } // mockable

type (
	// Option is one selectable value of a filter.
	Option struct {
		Value string `json:"value"`
		Label string `json:"label"`
	}

	// Filter narrows a list of learners. An empty value leaves the list unchanged.
	Filter interface {
		Options(ctx context.Context) ([]Option, error)
		Apply(ctx context.Context, learners []school.Learner, value string) ([]school.Learner, error)
	}

	Repository interface {
		school.CourseRepository
		school.ClassRepository
		school.ParticipantRepository
		school.ContentRepository
		school.AnswerRepository
	}

	CourseFilter struct {
		repo Repository
	}

	ClassFilter struct {
		repo Repository
	}

	// AirtimeFilter keeps the learners who answered at least 12 questions correctly last week.
	AirtimeFilter struct {
		repo Repository
	}
)

var (
	_ Filter = (*CourseFilter)(nil)
	_ Filter = (*ClassFilter)(nil)
	_ Filter = (*AirtimeFilter)(nil)
)

func NewCourseFilter(repo Repository) *CourseFilter   { return &CourseFilter{repo: repo} }
func NewClassFilter(repo Repository) *ClassFilter     { return &ClassFilter{repo: repo} }
func NewAirtimeFilter(repo Repository) *AirtimeFilter { return &AirtimeFilter{repo: repo} }

// Filters returns every learner filter keyed by its query parameter.
func Filters(repo Repository) map[string]Filter {
	return map[string]Filter{
		"id":   NewCourseFilter(repo),
		"cid":  NewClassFilter(repo),
		"name": NewAirtimeFilter(repo),
	}
}

func parseID(field, value string) (int, error) {
	id, err := strconv.Atoi(value)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(ErrInvalidFilterValue, core.FieldError{Field: field, Error: "must be a positive integer"})
	}
	return id, nil
}

// keepLearners returns the learners having a participant among participants, preserving order.
func keepLearners(learners []school.Learner, participants []school.Participant) []school.Learner {
	ids := make(map[int]struct{}, len(participants))
	for _, p := range participants {
		ids[p.LearnerID] = struct{}{}
	}
	kept := make([]school.Learner, 0, len(learners))
	for _, l := range learners {
		if _, ok := ids[l.ID]; ok {
			kept = append(kept, l)
		}
	}
	return kept
}

func (f *CourseFilter) Options(ctx context.Context) ([]Option, error) {
	courses, err := f.repo.QueryCourses(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	opts := make([]Option, 0, len(courses))
	for _, c := range courses {
		opts = append(opts, Option{Value: strconv.Itoa(c.ID), Label: c.Name})
	}
	return opts, nil
}

func (f *CourseFilter) Apply(ctx context.Context, learners []school.Learner, value string) ([]school.Learner, error) {
	if value == "" {
		return learners, nil
	}
	courseID, err := parseID("id", value)
	if err != nil {
		return nil, err
	}
	participants, err := f.repo.QueryParticipants(ctx, school.ParticipantFilter{CourseID: courseID})
	if err != nil {
		return nil, errors.Wrap(err, "querying course participants")
	}
	return keepLearners(learners, participants), nil
}

func (f *ClassFilter) Options(ctx context.Context) ([]Option, error) {
	classes, err := f.repo.QueryClasses(ctx, school.ClassFilter{})
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	opts := make([]Option, 0, len(classes))
	for _, c := range classes {
		opts = append(opts, Option{Value: strconv.Itoa(c.ID), Label: c.Name})
	}
	return opts, nil
}

func (f *ClassFilter) Apply(ctx context.Context, learners []school.Learner, value string) ([]school.Learner, error) {
	if value == "" {
		return learners, nil
	}
	classID, err := parseID("cid", value)
	if err != nil {
		return nil, err
	}
	participants, err := f.repo.QueryParticipants(ctx, school.ParticipantFilter{ClassID: classID})
	if err != nil {
		return nil, errors.Wrap(err, "querying class participants")
	}
	return keepLearners(learners, participants), nil
}

// LastWeek returns the Monday to Monday range of the week before now's week.
func LastWeek(now time.Time) (from, to time.Time) {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekday := (int(day.Weekday()) + 6) % 7 // Monday = 0
	from = day.AddDate(0, 0, -weekday-7)
	return from, from.AddDate(0, 0, 7)
}

func (f *AirtimeFilter) Options(context.Context) ([]Option, error) {
	return []Option{{Value: AirtimeAward, Label: "12 to 15 questions correct"}}, nil
}

// Apply ignores any value other than AirtimeAward.
func (f *AirtimeFilter) Apply(ctx context.Context, learners []school.Learner, value string) ([]school.Learner, error) {
	if value != AirtimeAward {
		return learners, nil
	}
	from, to := LastWeek(nowFunc())
	correct := true
	answers, err := f.repo.QueryAnswers(ctx, school.AnswerFilter{Correct: &correct, From: from, To: to})
	if err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}

	counts := make(map[int]int)
	for _, a := range answers {
		counts[a.ParticipantID]++
	}
	ids := make([]int, 0, len(counts))
	for id, n := range counts {
		if n >= airtimeMinCorrect {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []school.Learner{}, nil
	}
	participants, err := f.repo.QueryParticipants(ctx, school.ParticipantFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying participants")
	}
	return keepLearners(learners, participants), nil
}
