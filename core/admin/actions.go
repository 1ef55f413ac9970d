package admin

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/school"
)

var (
	// errors
	ErrUnknownAction      = errors.New("unknown action")
	ErrInvalidFilterValue = errors.New("invalid filter value")
)

type (
	ClassAction    string
	QuestionAction string

	classHandler    func(ctx context.Context, svc *school.Service, classID int) error
	questionHandler func(ctx context.Context, repo school.ContentRepository, ids ...int) (int, error)
)

// Class actions
const (
	ActivateClass   ClassAction = "activate_class"
	DeactivateClass ClassAction = "deactivate_class"
)

// Question actions
const (
	MakeIncomplete QuestionAction = "make_incomplete"
	MakeReady      QuestionAction = "make_ready"
	MakePublished  QuestionAction = "make_published"
)

var classActions = map[ClassAction]classHandler{
	ActivateClass: func(ctx context.Context, svc *school.Service, classID int) error {
		return svc.ActivateClass(ctx, classID)
	},
	DeactivateClass: func(ctx context.Context, svc *school.Service, classID int) error {
		return svc.DeactivateClass(ctx, classID)
	},
}

var questionActions = map[QuestionAction]questionHandler{
	MakeIncomplete: setState(school.StateIncomplete),
	MakeReady:      setState(school.StateReadyForReview),
	MakePublished:  setState(school.StatePublished),
}

func setState(state school.QuestionState) questionHandler {
	return func(ctx context.Context, repo school.ContentRepository, ids ...int) (int, error) {
		return repo.SetQuestionsState(ctx, state, ids...)
	}
}

func (a ClassAction) Valid() bool {
	_, ok := classActions[a]
	return ok
}

func (a QuestionAction) Valid() bool {
	_, ok := questionActions[a]
	return ok
}

// Actions runs bulk actions selected on the administration lists.
type Actions struct {
	school *school.Service
	repo   Repository
	logger core.Logger
}

func NewActions(svc *school.Service, repo Repository, logger core.Logger) *Actions {
	return &Actions{school: svc, repo: repo, logger: logger}
}

// RunClassAction applies action to every class in ids, stopping at the first failure.
func (a *Actions) RunClassAction(ctx context.Context, action ClassAction, ids ...int) error {
	handle, ok := classActions[action]
	if !ok {
		return errors.Wrapf(ErrUnknownAction, "%q", action)
	}
	for _, id := range ids {
		if err := handle(ctx, a.school, id); err != nil {
			return errors.Wrapf(err, "%s %d", action, id)
		}
	}
	a.logger.Info(fmt.Sprintf("%s applied to %d classes", action, len(ids)))
	return nil
}

// RunQuestionAction changes the state of the questions in ids and returns how many were updated.
func (a *Actions) RunQuestionAction(ctx context.Context, action QuestionAction, ids ...int) (int, error) {
	handle, ok := questionActions[action]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownAction, "%q", action)
	}
	n, err := handle(ctx, a.repo, ids...)
	if err != nil {
		return 0, errors.Wrapf(err, "%s", action)
	}
	a.logger.Info(fmt.Sprintf("%s applied to %d questions", action, n))
	return n, nil
}
