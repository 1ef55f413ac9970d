package report

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/digitme/digit/core/school"
)

var (
	ClassHeadings = []string{
		"Learner's Name",
		"Answered LAST MONTH",
		"Answered Correctly LAST MONTH (%)",
		"Answered ALL TIME",
		"Answered Correctly ALL TIME (%)",
	}
	ModuleHeadings = []string{
		"Module",
		"Answered Correctly LAST MONTH (%)",
		"Answered Correctly ALL TIME (%)",
	}
)

type (
	// ParticipantRow is one learner line of a class report. Percentages are floored.
	ParticipantRow struct {
		Name              string
		AnsweredLastMonth int
		CorrectLastMonth  int
		AnsweredAllTime   int
		CorrectAllTime    int
	}

	ModuleRow struct {
		Name             string
		CorrectLastMonth int
		CorrectAllTime   int
	}

	row interface {
		cells() []interface{}
	}
)

func (r ParticipantRow) cells() []interface{} {
	return []interface{}{r.Name, r.AnsweredLastMonth, r.CorrectLastMonth, r.AnsweredAllTime, r.CorrectAllTime}
}

func (r ModuleRow) cells() []interface{} {
	return []interface{}{r.Name, r.CorrectLastMonth, r.CorrectAllTime}
}

func record(r row) []string {
	cells := r.cells()
	rec := make([]string, 0, len(cells))
	for _, c := range cells {
		switch v := c.(type) {
		case string:
			rec = append(rec, v)
		case int:
			rec = append(rec, strconv.Itoa(v))
		}
	}
	return rec
}

// counts returns the number of answers and correct answers matching filter.
func counts(ctx context.Context, repo school.AnswerRepository, filter school.AnswerFilter) (answered, correct int, err error) {
	if answered, err = repo.CountAnswers(ctx, filter); err != nil || answered == 0 {
		return answered, 0, err
	}
	yes := true
	filter.Correct = &yes
	correct, err = repo.CountAnswers(ctx, filter)
	return answered, correct, err
}

// ProcessParticipant computes the class report row of p for the month of lastMonth and all time.
func ProcessParticipant(ctx context.Context, repo Repository, p school.Participant, lastMonth time.Time) (ParticipantRow, error) {
	learner, err := repo.GetLearner(ctx, p.LearnerID)
	if err != nil {
		return ParticipantRow{}, errors.Wrapf(err, "getting learner %d", p.LearnerID)
	}

	allTime := school.AnswerFilter{ParticipantIDs: []int{p.ID}}
	allAnswered, allCorrect, err := counts(ctx, repo, allTime)
	if err != nil {
		return ParticipantRow{}, errors.Wrap(err, "counting answers")
	}

	from, to := monthWindow(lastMonth)
	monthAnswered, monthCorrect, err := counts(ctx, repo, school.AnswerFilter{ParticipantIDs: []int{p.ID}, From: from, To: to})
	if err != nil {
		return ParticipantRow{}, errors.Wrap(err, "counting last month answers")
	}

	return ParticipantRow{
		Name:              asciiReplace(learner.FirstName),
		AnsweredLastMonth: monthAnswered,
		CorrectLastMonth:  school.Percentage(monthCorrect, monthAnswered),
		AnsweredAllTime:   allAnswered,
		CorrectAllTime:    school.Percentage(allCorrect, allAnswered),
	}, nil
}

// ProcessModule computes the module report row of m over every answer to its questions.
func ProcessModule(ctx context.Context, repo Repository, m school.Module, lastMonth time.Time) (ModuleRow, error) {
	allAnswered, allCorrect, err := counts(ctx, repo, school.AnswerFilter{ModuleID: m.ID})
	if err != nil {
		return ModuleRow{}, errors.Wrap(err, "counting module answers")
	}

	from, to := monthWindow(lastMonth)
	monthAnswered, monthCorrect, err := counts(ctx, repo, school.AnswerFilter{ModuleID: m.ID, From: from, To: to})
	if err != nil {
		return ModuleRow{}, errors.Wrap(err, "counting last month module answers")
	}

	return ModuleRow{
		Name:             asciiReplace(m.Name),
		CorrectLastMonth: school.Percentage(monthCorrect, monthAnswered),
		CorrectAllTime:   school.Percentage(allCorrect, allAnswered),
	}, nil
}
