package communication

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Ban source types
const (
	SourceComment = 1
)

type Post struct {
	ID          int       `json:"id" db:"id"`
	CourseID    null.Int  `json:"course_id" db:"course_id"`
	Name        string    `json:"name" db:"name"`
	Content     string    `json:"content" db:"content"`
	PublishDate time.Time `json:"publish_date" db:"publish_date"`
}

type PostComment struct {
	ID              int       `json:"id" db:"id"`
	PostID          int       `json:"post_id" db:"post_id"`
	AuthorID        int       `json:"author_id" db:"author_id"` // school.Learner ID
	Content         string    `json:"content" db:"content"`
	OriginalContent string    `json:"-" db:"original_content"`
	PublishDate     time.Time `json:"publish_date" db:"publish_date"`
	Moderated       bool      `json:"moderated" db:"moderated"`
	UnmoderatedBy   null.Int  `json:"unmoderated_by" db:"unmoderated_by"` // user.User ID
	UnmoderatedDate null.Time `json:"unmoderated_date" db:"unmoderated_date"`
}

type PostCommentLike struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"` // school.Learner ID
	CommentID int       `json:"comment_id" db:"comment_id"`
	LikedAt   time.Time `json:"liked_at" db:"liked_at"`
}

type Ban struct {
	ID           int       `json:"id" db:"id"`
	BannedUserID int       `json:"banned_user_id" db:"banned_user_id"`   // school.Learner ID
	BanningUser  int       `json:"banning_user_id" db:"banning_user_id"` // user.User ID
	When         time.Time `json:"when" db:"ban_when"`
	TillWhen     time.Time `json:"till_when" db:"till_when"`
	SourceType   int       `json:"source_type" db:"source_type"`
	SourceID     int       `json:"source_id" db:"source_id"`
}

// Duration is the number of calendar days covered by the ban, both ends included.
func (b Ban) Duration() int {
	return int(truncateDay(b.TillWhen).Sub(truncateDay(b.When)).Hours()/24) + 1
}

type Profanity struct {
	ID   int    `json:"id" db:"id"`
	Word string `json:"word" db:"word"`
}

type Sms struct {
	ID        int       `json:"id" db:"id"`
	UUID      string    `json:"uuid" db:"uuid"`
	Msisdn    string    `json:"msisdn" db:"msisdn"`
	Message   string    `json:"message" db:"message"`
	Sent      bool      `json:"sent" db:"sent"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type SmsQueue struct {
	ID       int       `json:"id" db:"id"`
	Msisdn   string    `json:"msisdn" db:"msisdn"`
	Message  string    `json:"message" db:"message"`
	SendDate time.Time `json:"send_date" db:"send_date"`
	Sent     bool      `json:"sent" db:"sent"`
	SentDate null.Time `json:"sent_date" db:"sent_date"`
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return truncateDay(t).Add(24*time.Hour - time.Microsecond)
}
