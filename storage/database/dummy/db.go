package dummydb

import (
	"sort"
	"sync"

	"github.com/digitme/digit/core/communication"
	"github.com/digitme/digit/core/school"
	"github.com/digitme/digit/core/user"
)

// table is an in-memory table keyed by an auto-incremented primary key.
type table[T any] struct {
	pk   int
	rows map[int]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[int]T)}
}

func (t *table[T]) nextPK() int {
	t.pk++
	return t.pk
}

// all returns the rows ordered by primary key.
func (t *table[T]) all() []T {
	keys := make([]int, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	rows := make([]T, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, t.rows[k])
	}
	return rows
}

func (t *table[T]) filter(keep func(T) bool) []T {
	var rows []T
	for _, r := range t.all() {
		if keep(r) {
			rows = append(rows, r)
		}
	}
	return rows
}

type courseModule struct {
	courseID, moduleID int
}

type DB struct {
	mu sync.RWMutex

	users *table[user.User]

	learners          *table[school.Learner]
	organisations     *table[school.Organisation]
	schools           *table[school.School]
	courses           *table[school.Course]
	modules           *table[school.Module]
	courseModules     *table[courseModule]
	classes           *table[school.Class]
	participants      *table[school.Participant]
	questions         *table[school.Question]
	options           *table[school.Option]
	answers           *table[school.Answer]
	pointGrants       *table[school.PointGrant]
	pointBonuses      *table[school.PointBonus]
	badgeTemplates    *table[school.BadgeTemplate]
	scenarios         *table[school.Scenario]
	participantBadges *table[school.ParticipantBadge]
	goldenEggs        *table[school.GoldenEgg]
	goldenEggLogs     *table[school.GoldenEggRewardLog]
	teacherClasses    *table[school.TeacherClass]
	settings          map[string]string
	taskLogs          *table[school.TaskLog]

	posts       *table[communication.Post]
	comments    *table[communication.PostComment]
	likes       *table[communication.PostCommentLike]
	bans        *table[communication.Ban]
	profanities *table[communication.Profanity]
	sms         *table[communication.Sms]
	smsQueue    *table[communication.SmsQueue]
}

func Open() (*DB, error) {
	db := &DB{
		users: newTable[user.User](),

		learners:          newTable[school.Learner](),
		organisations:     newTable[school.Organisation](),
		schools:           newTable[school.School](),
		courses:           newTable[school.Course](),
		modules:           newTable[school.Module](),
		courseModules:     newTable[courseModule](),
		classes:           newTable[school.Class](),
		participants:      newTable[school.Participant](),
		questions:         newTable[school.Question](),
		options:           newTable[school.Option](),
		answers:           newTable[school.Answer](),
		pointGrants:       newTable[school.PointGrant](),
		pointBonuses:      newTable[school.PointBonus](),
		badgeTemplates:    newTable[school.BadgeTemplate](),
		scenarios:         newTable[school.Scenario](),
		participantBadges: newTable[school.ParticipantBadge](),
		goldenEggs:        newTable[school.GoldenEgg](),
		goldenEggLogs:     newTable[school.GoldenEggRewardLog](),
		teacherClasses:    newTable[school.TeacherClass](),
		settings:          make(map[string]string),
		taskLogs:          newTable[school.TaskLog](),

		posts:       newTable[communication.Post](),
		comments:    newTable[communication.PostComment](),
		likes:       newTable[communication.PostCommentLike](),
		bans:        newTable[communication.Ban](),
		profanities: newTable[communication.Profanity](),
		sms:         newTable[communication.Sms](),
		smsQueue:    newTable[communication.SmsQueue](),
	}
	return db, nil
}

func containsInt(ids []int, id int) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}
