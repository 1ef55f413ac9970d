package school

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type PointBonus struct {
	ID    int    `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Value int    `json:"value" db:"value"`
}

type BadgeTemplate struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`
}

// Scenario rewards participants when Event happens in a course, optionally scoped to a module.
type Scenario struct {
	ID       int      `json:"id" db:"id"`
	Name     string   `json:"name" db:"name"`
	Event    string   `json:"event" db:"event"`
	CourseID null.Int `json:"course_id" db:"course_id"`
	ModuleID null.Int `json:"module_id" db:"module_id"`
	PointID  null.Int `json:"point_id" db:"point_id"`
	BadgeID  null.Int `json:"badge_id" db:"badge_id"`
}

type ParticipantBadge struct {
	ID            int       `json:"id" db:"id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	BadgeID       int       `json:"badge_id" db:"badge_id"`
	ScenarioID    null.Int  `json:"scenario_id" db:"scenario_id"`
	AwardCount    int       `json:"award_count" db:"award_count"`
	AwardDate     time.Time `json:"award_date" db:"award_date"`
}

// GoldenEgg is a one-off reward of either points, airtime or a badge scenario.
type GoldenEgg struct {
	ID         int      `json:"id" db:"id"`
	CourseID   int      `json:"course_id" db:"course_id"`
	ClassID    null.Int `json:"class_id" db:"class_id"`
	IsActive   bool     `json:"is_active" db:"is_active"`
	PointValue null.Int `json:"point_value" db:"point_value"`
	Airtime    null.Int `json:"airtime" db:"airtime"`
	ScenarioID null.Int `json:"scenario_id" db:"scenario_id"`
}

type GoldenEggRewardLog struct {
	ID            int       `json:"id" db:"id"`
	ParticipantID int       `json:"participant_id" db:"participant_id"`
	Points        null.Int  `json:"points" db:"points"`
	Airtime       null.Int  `json:"airtime" db:"airtime"`
	ScenarioID    null.Int  `json:"scenario_id" db:"scenario_id"`
	AwardDate     time.Time `json:"award_date" db:"award_date"`
}

// Level is a participant's position on the points ladder.
type Level struct {
	Points          int `json:"points"`
	Level           int `json:"level"`
	PointsRemaining int `json:"points_remaining"`
}

const pointsPerLevel = 100

// CalcLevel returns the level reached with points and the points left to reach the next one.
func CalcLevel(points int) (level, remaining int) {
	return points/pointsPerLevel + 1, pointsPerLevel - points%pointsPerLevel
}
