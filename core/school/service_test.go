package school_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/school"
	"github.com/digitme/digit/storage/database/dummy"
	"github.com/digitme/digit/testutil"
)

type fixture struct {
	repo    school.Repository
	svc     *school.Service
	logger  *testutil.Logger
	course  school.Course
	class   school.Class
	module  school.Module
	learner school.Learner
	part    school.Participant
}

func setup(t *testing.T) *fixture {
	db, err := dummydb.Open()
	require.NoError(t, err)
	repo := dummydb.NewSchoolRepository(db)
	logger := &testutil.Logger{}

	f := &fixture{repo: repo, svc: school.NewService(repo, logger), logger: logger}
	f.course, f.class = testutil.CreateClass(t, repo, "Maths 1A")
	f.module, err = repo.CreateModule(context.Background(), school.Module{Name: "Algebra", IsActive: true})
	require.NoError(t, err)
	require.NoError(t, repo.LinkCourseModule(context.Background(), f.course.ID, f.module.ID))
	f.learner = testutil.CreateLearner(t, repo, "thabo", school.Grade10, 0)
	f.part = testutil.CreateParticipant(t, repo, f.learner.ID, f.class.ID, true)
	return f
}

func TestService_Answer(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	q, right, wrong := testutil.CreateQuestion(t, f.repo, f.module.ID, 3)
	other, otherRight, _ := testutil.CreateQuestion(t, f.repo, f.module.ID, 0)

	tests := []struct {
		name        string
		questionID  int
		optionID    int
		wantCorrect bool
		wantPoints  int
		wantErr     error
	}{
		{name: "wrong answer", questionID: q.ID, optionID: wrong.ID, wantPoints: 0},
		{name: "right answer", questionID: q.ID, optionID: right.ID, wantCorrect: true, wantPoints: 3},
		{name: "zero point question", questionID: other.ID, optionID: otherRight.ID, wantCorrect: true, wantPoints: 4},
		{name: "option of another question", questionID: q.ID, optionID: otherRight.ID, wantErr: school.ErrOptionMismatch, wantPoints: 4},
		{name: "unknown option", questionID: q.ID, optionID: 999, wantErr: school.ErrOptionNotFound, wantPoints: 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ans, err := f.svc.Answer(ctx, f.part.ID, tc.questionID, tc.optionID)
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "got %v", err)
			} else if assert.NoError(t, err) {
				assert.Equal(t, tc.wantCorrect, ans.Correct)
			}
			p, err := f.repo.GetParticipant(ctx, f.part.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.wantPoints, p.Points)
		})
	}
}

func TestService_Answer_mismatchIsValidationError(t *testing.T) {
	f := setup(t)
	q, _, _ := testutil.CreateQuestion(t, f.repo, f.module.ID, 1)
	_, otherRight, _ := testutil.CreateQuestion(t, f.repo, f.module.ID, 1)

	_, err := f.svc.Answer(context.Background(), f.part.ID, q.ID, otherRight.ID)
	var verr *core.ValidationError
	if assert.True(t, errors.As(err, &verr)) {
		assert.Equal(t, "option_id", verr.Fields[0].Field)
	}
}

func TestService_Answer_inactiveParticipant(t *testing.T) {
	f := setup(t)
	q, right, _ := testutil.CreateQuestion(t, f.repo, f.module.ID, 1)
	p := testutil.CreateParticipant(t, f.repo, f.learner.ID, f.class.ID, false)

	_, err := f.svc.Answer(context.Background(), p.ID, q.ID, right.ID)
	assert.Equal(t, school.ErrInactiveParticipant, err)
}

func TestService_Level(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	f.part.Points = 230
	_, err := f.repo.UpdateParticipant(ctx, f.part)
	require.NoError(t, err)

	level, err := f.svc.Level(ctx, f.part.ID)
	require.NoError(t, err)
	assert.Equal(t, school.Level{Points: 230, Level: 3, PointsRemaining: 70}, level)
}

func TestService_RecalculateTotalPoints(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	q, right, _ := testutil.CreateQuestion(t, f.repo, f.module.ID, 5)
	_, err := f.svc.Answer(ctx, f.part.ID, q.ID, right.ID)
	require.NoError(t, err)

	drifted, err := f.repo.GetParticipant(ctx, f.part.ID)
	require.NoError(t, err)
	drifted.Points = 42
	_, err = f.repo.UpdateParticipant(ctx, drifted)
	require.NoError(t, err)

	p, err := f.svc.RecalculateTotalPoints(ctx, f.part.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Points)
	assert.Len(t, f.logger.Messages("warn"), 1)
}

func TestService_AwardScenario(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	bonus, err := f.repo.CreatePointBonus(ctx, school.PointBonus{Name: "streak", Value: 10})
	require.NoError(t, err)
	badge, err := f.repo.CreateBadgeTemplate(ctx, school.BadgeTemplate{Name: "Streaker"})
	require.NoError(t, err)

	// course-level scenario only: module events fall back to it
	_, err = f.repo.CreateScenario(ctx, school.Scenario{
		Name:     "5 correct",
		Event:    "5_CORRECT",
		CourseID: null.IntFrom(f.course.ID),
		PointID:  null.IntFrom(bonus.ID),
		BadgeID:  null.IntFrom(badge.ID),
	})
	require.NoError(t, err)

	p, err := f.svc.AwardScenario(ctx, f.part.ID, "5_CORRECT", null.IntFrom(f.module.ID))
	require.NoError(t, err)
	assert.Equal(t, 10, p.Points)

	p, err = f.svc.AwardScenario(ctx, f.part.ID, "5_CORRECT", null.Int{})
	require.NoError(t, err)
	assert.Equal(t, 20, p.Points)

	pb, err := f.repo.GetParticipantBadge(ctx, f.part.ID, badge.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pb.AwardCount)

	p, err = f.svc.AwardScenario(ctx, f.part.ID, "UNKNOWN", null.Int{})
	require.NoError(t, err)
	assert.Equal(t, 20, p.Points)
}

func TestService_GetScenarios_modulePreferred(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	courseWide, err := f.repo.CreateScenario(ctx, school.Scenario{Name: "course", Event: "LOGIN", CourseID: null.IntFrom(f.course.ID)})
	require.NoError(t, err)
	moduleOnly, err := f.repo.CreateScenario(ctx, school.Scenario{
		Name:     "module",
		Event:    "LOGIN",
		CourseID: null.IntFrom(f.course.ID),
		ModuleID: null.IntFrom(f.module.ID),
	})
	require.NoError(t, err)

	got, err := f.svc.GetScenarios(ctx, f.part, "LOGIN", null.IntFrom(f.module.ID))
	require.NoError(t, err)
	assert.Equal(t, []school.Scenario{moduleOnly}, got)

	got, err = f.svc.GetScenarios(ctx, f.part, "LOGIN", null.Int{})
	require.NoError(t, err)
	assert.Equal(t, []school.Scenario{courseWide}, got)
}

func TestService_AwardGoldenEgg(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	defer school.SetNow(now)()

	t.Run("no egg", func(t *testing.T) {
		f := setup(t)
		_, err := f.svc.AwardGoldenEgg(ctx, f.part.ID)
		assert.Equal(t, school.ErrNoGoldenEgg, err)
	})

	t.Run("class egg preferred over course egg", func(t *testing.T) {
		f := setup(t)
		_, err := f.repo.CreateGoldenEgg(ctx, school.GoldenEgg{CourseID: f.course.ID, IsActive: true, PointValue: null.IntFrom(5)})
		require.NoError(t, err)
		_, err = f.repo.CreateGoldenEgg(ctx, school.GoldenEgg{
			CourseID: f.course.ID,
			ClassID:  null.IntFrom(f.class.ID),
			IsActive: true,
			Airtime:  null.IntFrom(20),
		})
		require.NoError(t, err)

		rewardLog, err := f.svc.AwardGoldenEgg(ctx, f.part.ID)
		require.NoError(t, err)
		assert.Equal(t, null.IntFrom(20), rewardLog.Airtime)
		assert.False(t, rewardLog.Points.Valid)
		assert.Equal(t, now, rewardLog.AwardDate)

		p, err := f.repo.GetParticipant(ctx, f.part.ID)
		require.NoError(t, err)
		assert.Zero(t, p.Points)
	})

	t.Run("course points egg", func(t *testing.T) {
		f := setup(t)
		_, err := f.repo.CreateGoldenEgg(ctx, school.GoldenEgg{CourseID: f.course.ID, IsActive: false, PointValue: null.IntFrom(50)})
		require.NoError(t, err)
		_, err = f.repo.CreateGoldenEgg(ctx, school.GoldenEgg{CourseID: f.course.ID, IsActive: true, PointValue: null.IntFrom(5)})
		require.NoError(t, err)

		rewardLog, err := f.svc.AwardGoldenEgg(ctx, f.part.ID)
		require.NoError(t, err)
		assert.Equal(t, null.IntFrom(5), rewardLog.Points)

		p, err := f.repo.GetParticipant(ctx, f.part.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, p.Points)
	})

	t.Run("scenario egg", func(t *testing.T) {
		f := setup(t)
		badge, err := f.repo.CreateBadgeTemplate(ctx, school.BadgeTemplate{Name: "Golden"})
		require.NoError(t, err)
		s, err := f.repo.CreateScenario(ctx, school.Scenario{Name: "egg", Event: "GOLDEN_EGG", BadgeID: null.IntFrom(badge.ID)})
		require.NoError(t, err)
		_, err = f.repo.CreateGoldenEgg(ctx, school.GoldenEgg{CourseID: f.course.ID, IsActive: true, ScenarioID: null.IntFrom(s.ID)})
		require.NoError(t, err)

		rewardLog, err := f.svc.AwardGoldenEgg(ctx, f.part.ID)
		require.NoError(t, err)
		assert.Equal(t, null.IntFrom(s.ID), rewardLog.ScenarioID)

		pb, err := f.repo.GetParticipantBadge(ctx, f.part.ID, badge.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, pb.AwardCount)
	})
}

func TestService_DeactivateActivateClass(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, otherClass := testutil.CreateClass(t, f.repo, "Maths 1B")
	busy := testutil.CreateLearner(t, f.repo, "lerato", school.Grade10, 0)
	busyPart := testutil.CreateParticipant(t, f.repo, busy.ID, f.class.ID, true)

	require.NoError(t, f.svc.DeactivateClass(ctx, f.class.ID))
	class, err := f.repo.GetClass(ctx, f.class.ID)
	require.NoError(t, err)
	assert.False(t, class.IsActive)
	for _, id := range []int{f.part.ID, busyPart.ID} {
		p, err := f.repo.GetParticipant(ctx, id)
		require.NoError(t, err)
		assert.False(t, p.IsActive)
	}

	// lerato moved on to another class in the meantime
	testutil.CreateParticipant(t, f.repo, busy.ID, otherClass.ID, true)

	require.NoError(t, f.svc.ActivateClass(ctx, f.class.ID))
	class, err = f.repo.GetClass(ctx, f.class.ID)
	require.NoError(t, err)
	assert.True(t, class.IsActive)

	p, err := f.repo.GetParticipant(ctx, f.part.ID)
	require.NoError(t, err)
	assert.True(t, p.IsActive)
	p, err = f.repo.GetParticipant(ctx, busyPart.ID)
	require.NoError(t, err)
	assert.False(t, p.IsActive)
}

func TestService_Settings(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Setting(ctx, "MAX_BANS")
	assert.Equal(t, school.ErrSettingNotFound, err)

	require.NoError(t, f.svc.SetSetting(ctx, " MAX_BANS ", "3"))
	v, err := f.svc.Setting(ctx, "MAX_BANS")
	require.NoError(t, err)
	assert.Equal(t, "3", v)
}
