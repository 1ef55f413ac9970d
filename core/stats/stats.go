// Package stats computes activity counts over trailing windows and per question.
package stats

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/digitme/digit/core/school"
)

var nowFunc = func() time.Time { return time.Now().UTC() } // mockable

type (
	Repository interface {
		school.ParticipantRepository
		school.AnswerRepository
	}

	// Window holds the activity of the last Hours hours.
	Window struct {
		Hours             int `json:"hours"`
		Registered        int `json:"registered"`
		Answered          int `json:"answered"`
		AnsweredCorrectly int `json:"answered_correctly"`
		PercentageCorrect int `json:"percentage_correct"`
	}

	Question struct {
		QuestionID        int `json:"question_id"`
		Answered          int `json:"answered"`
		AnsweredCorrectly int `json:"answered_correctly"`
		PercentageCorrect int `json:"percentage_correct"`
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) (*Service, error) {
	if err := vala.BeginValidation().Validate(vala.IsNotNil(repo, "repo")).Check(); err != nil {
		return nil, err
	}
	return &Service{repo: repo}, nil
}

func (svc *Service) since(hours int) time.Time {
	return nowFunc().Add(-time.Duration(hours) * time.Hour)
}

// RegisteredLastHours counts the participants that joined in the last hours.
func (svc *Service) RegisteredLastHours(ctx context.Context, hours int) (int, error) {
	participants, err := svc.repo.QueryParticipants(ctx, school.ParticipantFilter{JoinedFrom: svc.since(hours)})
	if err != nil {
		return 0, errors.Wrap(err, "querying participants")
	}
	return len(participants), nil
}

func (svc *Service) AnsweredLastHours(ctx context.Context, hours int) (int, error) {
	return svc.repo.CountAnswers(ctx, school.AnswerFilter{From: svc.since(hours)})
}

func (svc *Service) AnsweredCorrectlyLastHours(ctx context.Context, hours int) (int, error) {
	correct := true
	return svc.repo.CountAnswers(ctx, school.AnswerFilter{From: svc.since(hours), Correct: &correct})
}

// LastHours gathers every window count in one go.
func (svc *Service) LastHours(ctx context.Context, hours int) (Window, error) {
	w := Window{Hours: hours}
	var err error
	if w.Registered, err = svc.RegisteredLastHours(ctx, hours); err != nil {
		return w, err
	}
	if w.Answered, err = svc.AnsweredLastHours(ctx, hours); err != nil {
		return w, errors.Wrap(err, "counting answers")
	}
	if w.AnsweredCorrectly, err = svc.AnsweredCorrectlyLastHours(ctx, hours); err != nil {
		return w, errors.Wrap(err, "counting correct answers")
	}
	w.PercentageCorrect = school.Percentage(w.AnsweredCorrectly, w.Answered)
	return w, nil
}

// ForQuestion counts all answers ever given to questionID.
func (svc *Service) ForQuestion(ctx context.Context, questionID int) (Question, error) {
	q := Question{QuestionID: questionID}
	var err error
	if q.Answered, err = svc.repo.CountAnswers(ctx, school.AnswerFilter{QuestionID: questionID}); err != nil {
		return q, errors.Wrap(err, "counting answers")
	}
	correct := true
	filter := school.AnswerFilter{QuestionID: questionID, Correct: &correct}
	if q.AnsweredCorrectly, err = svc.repo.CountAnswers(ctx, filter); err != nil {
		return q, errors.Wrap(err, "counting correct answers")
	}
	q.PercentageCorrect = school.Percentage(q.AnsweredCorrectly, q.Answered)
	return q, nil
}
