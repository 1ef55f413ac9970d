package school

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/digitme/digit/core"
)

var (
	ErrOptionMismatch      = errors.New("option does not belong to question")
	ErrNoGoldenEgg         = errors.New("no active golden egg")
	ErrInactiveParticipant = errors.New("participant is not active")
)

var nowFunc = func() time.Time { return time.Now().UTC() } // mockable

type Service struct {
	repo   Repository
	logger core.Logger
}

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Answer records participantID's answer to a question. A correct answer grants the question's points.
func (svc *Service) Answer(ctx context.Context, participantID, questionID, optionID int) (Answer, error) {
	p, err := svc.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return Answer{}, err
	}
	if !p.IsActive {
		return Answer{}, ErrInactiveParticipant
	}
	q, err := svc.repo.GetQuestion(ctx, questionID)
	if err != nil {
		return Answer{}, err
	}
	opt, err := svc.repo.GetOption(ctx, optionID)
	if err != nil {
		return Answer{}, err
	}
	if opt.QuestionID != q.ID {
		return Answer{}, core.NewValidationError(ErrOptionMismatch, core.FieldError{
			Field: "option_id",
			Error: ErrOptionMismatch.Error(),
		})
	}

	ans, err := svc.repo.CreateAnswer(ctx, Answer{
		ParticipantID: p.ID,
		QuestionID:    q.ID,
		OptionID:      opt.ID,
		Correct:       opt.Correct,
		AnsweredAt:    nowFunc(),
	})
	if err != nil {
		return Answer{}, errors.Wrap(err, "creating answer")
	}

	if ans.Correct {
		points := q.Points
		if points <= 0 {
			points = 1
		}
		if _, err = svc.grant(ctx, p, points, SourceAnswer, null.IntFrom(ans.ID)); err != nil {
			return Answer{}, err
		}
	}
	return ans, nil
}

func (svc *Service) grant(ctx context.Context, p Participant, points int, source string, sourceID null.Int) (Participant, error) {
	_, err := svc.repo.CreatePointGrant(ctx, PointGrant{
		ParticipantID: p.ID,
		Points:        points,
		Source:        source,
		SourceID:      sourceID,
		GrantedAt:     nowFunc(),
	})
	if err != nil {
		return p, errors.Wrap(err, "creating point grant")
	}
	p.Points += points
	p, err = svc.repo.UpdateParticipant(ctx, p)
	return p, errors.Wrap(err, "updating participant points")
}

// GetScenarios returns the scenarios of the participant's course matching event and module.
// Course-level scenarios are used when no scenario targets the module.
func (svc *Service) GetScenarios(ctx context.Context, p Participant, event string, moduleID null.Int) ([]Scenario, error) {
	class, err := svc.repo.GetClass(ctx, p.ClassID)
	if err != nil {
		return nil, errors.Wrap(err, "getting participant class")
	}
	filter := ScenarioFilter{Event: event, CourseID: class.CourseID, ModuleID: moduleID}
	scenarios, err := svc.repo.QueryScenarios(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(scenarios) == 0 && moduleID.Valid {
		filter.ModuleID = null.Int{}
		return svc.repo.QueryScenarios(ctx, filter)
	}
	return scenarios, nil
}

// AwardScenario grants the point bonuses and badges of every scenario matching event.
func (svc *Service) AwardScenario(ctx context.Context, participantID int, event string, moduleID null.Int) (Participant, error) {
	p, err := svc.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return Participant{}, err
	}
	scenarios, err := svc.GetScenarios(ctx, p, event, moduleID)
	if err != nil {
		return p, err
	}
	for _, s := range scenarios {
		if p, err = svc.applyScenario(ctx, p, s); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (svc *Service) applyScenario(ctx context.Context, p Participant, s Scenario) (Participant, error) {
	if s.PointID.Valid {
		bonus, err := svc.repo.GetPointBonus(ctx, s.PointID.Int)
		if err != nil {
			return p, errors.Wrapf(err, "scenario %d", s.ID)
		}
		if p, err = svc.grant(ctx, p, bonus.Value, SourceScenario, null.IntFrom(s.ID)); err != nil {
			return p, err
		}
	}
	if s.BadgeID.Valid {
		if err := svc.awardBadge(ctx, p, s); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (svc *Service) awardBadge(ctx context.Context, p Participant, s Scenario) error {
	badge, err := svc.repo.GetParticipantBadge(ctx, p.ID, s.BadgeID.Int)
	switch errors.Cause(err) {
	case nil:
		badge.AwardCount++
	case ErrBadgeNotFound:
		badge = ParticipantBadge{
			ParticipantID: p.ID,
			BadgeID:       s.BadgeID.Int,
			ScenarioID:    null.IntFrom(s.ID),
			AwardCount:    1,
		}
	default:
		return errors.Wrap(err, "getting participant badge")
	}
	badge.AwardDate = nowFunc()
	_, err = svc.repo.SaveParticipantBadge(ctx, badge)
	return errors.Wrap(err, "saving participant badge")
}

// RecalculateTotalPoints re-derives the participant's points from its grants.
func (svc *Service) RecalculateTotalPoints(ctx context.Context, participantID int) (Participant, error) {
	p, err := svc.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return Participant{}, err
	}
	total, err := svc.repo.SumPointGrants(ctx, p.ID)
	if err != nil {
		return p, errors.Wrap(err, "summing point grants")
	}
	if total == p.Points {
		return p, nil
	}
	svc.logger.Warn(fmt.Sprintf("participant %d points drifted: %d -> %d", p.ID, p.Points, total))
	p.Points = total
	return svc.repo.UpdateParticipant(ctx, p)
}

func (svc *Service) Level(ctx context.Context, participantID int) (Level, error) {
	p, err := svc.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return Level{}, err
	}
	level, remaining := CalcLevel(p.Points)
	return Level{Points: p.Points, Level: level, PointsRemaining: remaining}, nil
}

// AwardGoldenEgg rewards the participant with the active golden egg of its class, or of its course.
func (svc *Service) AwardGoldenEgg(ctx context.Context, participantID int) (GoldenEggRewardLog, error) {
	p, err := svc.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return GoldenEggRewardLog{}, err
	}
	class, err := svc.repo.GetClass(ctx, p.ClassID)
	if err != nil {
		return GoldenEggRewardLog{}, errors.Wrap(err, "getting participant class")
	}

	active := true
	eggs, err := svc.repo.QueryGoldenEggs(ctx, GoldenEggFilter{CourseID: class.CourseID, ClassID: null.IntFrom(class.ID), IsActive: &active})
	if err != nil {
		return GoldenEggRewardLog{}, err
	}
	if len(eggs) == 0 {
		if eggs, err = svc.repo.QueryGoldenEggs(ctx, GoldenEggFilter{CourseID: class.CourseID, IsActive: &active}); err != nil {
			return GoldenEggRewardLog{}, err
		}
	}
	if len(eggs) == 0 {
		return GoldenEggRewardLog{}, ErrNoGoldenEgg
	}
	egg := eggs[0]

	rewardLog := GoldenEggRewardLog{ParticipantID: p.ID, AwardDate: nowFunc()}
	switch {
	case egg.PointValue.Valid:
		if _, err = svc.grant(ctx, p, egg.PointValue.Int, SourceGoldenEgg, null.IntFrom(egg.ID)); err != nil {
			return GoldenEggRewardLog{}, err
		}
		rewardLog.Points = egg.PointValue
	case egg.Airtime.Valid:
		svc.logger.Info(fmt.Sprintf("golden egg %d: R%d airtime owed to participant %d", egg.ID, egg.Airtime.Int, p.ID))
		rewardLog.Airtime = egg.Airtime
	case egg.ScenarioID.Valid:
		s, err := svc.repo.GetScenario(ctx, egg.ScenarioID.Int)
		if err != nil {
			return GoldenEggRewardLog{}, errors.Wrap(err, "getting golden egg scenario")
		}
		if _, err = svc.applyScenario(ctx, p, s); err != nil {
			return GoldenEggRewardLog{}, err
		}
		rewardLog.ScenarioID = egg.ScenarioID
	}
	return svc.repo.CreateGoldenEggRewardLog(ctx, rewardLog)
}

// DeactivateClass deactivates the class and all its participants.
func (svc *Service) DeactivateClass(ctx context.Context, classID int) error {
	class, err := svc.repo.GetClass(ctx, classID)
	if err != nil {
		return err
	}
	active := true
	participants, err := svc.repo.QueryParticipants(ctx, ParticipantFilter{ClassID: class.ID, IsActive: &active})
	if err != nil {
		return err
	}
	for _, p := range participants {
		p.IsActive = false
		if _, err = svc.repo.UpdateParticipant(ctx, p); err != nil {
			return errors.Wrapf(err, "deactivating participant %d", p.ID)
		}
	}
	class.IsActive = false
	_, err = svc.repo.UpdateClass(ctx, class)
	return errors.Wrap(err, "deactivating class")
}

// ActivateClass activates the class and the participants whose learner is not active elsewhere.
func (svc *Service) ActivateClass(ctx context.Context, classID int) error {
	class, err := svc.repo.GetClass(ctx, classID)
	if err != nil {
		return err
	}
	inactive, active := false, true
	participants, err := svc.repo.QueryParticipants(ctx, ParticipantFilter{ClassID: class.ID, IsActive: &inactive})
	if err != nil {
		return err
	}
	for _, p := range participants {
		others, err := svc.repo.QueryParticipants(ctx, ParticipantFilter{LearnerID: p.LearnerID, IsActive: &active})
		if err != nil {
			return err
		}
		if len(others) > 0 {
			continue
		}
		p.IsActive = true
		if _, err = svc.repo.UpdateParticipant(ctx, p); err != nil {
			return errors.Wrapf(err, "activating participant %d", p.ID)
		}
	}
	class.IsActive = true
	_, err = svc.repo.UpdateClass(ctx, class)
	return errors.Wrap(err, "activating class")
}

// Setting returns the value stored under key, or ErrSettingNotFound.
func (svc *Service) Setting(ctx context.Context, key string) (string, error) {
	s, err := svc.repo.GetSetting(ctx, core.CleanString(key))
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

func (svc *Service) SetSetting(ctx context.Context, key, value string) error {
	return svc.repo.SaveSetting(ctx, Setting{Key: core.CleanString(key), Value: value})
}
