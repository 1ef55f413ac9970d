package communication

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/user"
)

var (
	// errors
	ErrCommentNotFound = errors.New("comment not found")
	ErrLikeNotFound    = errors.New("like not found")
	ErrInvalidBanDays  = errors.New("ban must last at least one day")

	nowFunc = func() time.Time { return time.Now().UTC() } // mockable
)

type (
	BanFilter struct {
		BannedUserID int
		TillFrom     time.Time // bans ending at or after
	}

	SmsQueueFilter struct {
		DueBefore time.Time
		Sent      *bool
	}

	Repository interface {
		CreatePost(ctx context.Context, p Post) (Post, error)
		CreateComment(ctx context.Context, c PostComment) (PostComment, error)
		GetComment(ctx context.Context, id int) (PostComment, error)
		UpdateComment(ctx context.Context, c PostComment) (PostComment, error)

		CreateBan(ctx context.Context, b Ban) (Ban, error)
		QueryBans(ctx context.Context, filter BanFilter) ([]Ban, error)

		CreateProfanity(ctx context.Context, p Profanity) (Profanity, error)
		QueryProfanities(ctx context.Context) ([]Profanity, error)

		GetLike(ctx context.Context, userID, commentID int) (PostCommentLike, error)
		CreateLike(ctx context.Context, l PostCommentLike) (PostCommentLike, error)
		DeleteLike(ctx context.Context, userID, commentID int) error
		CountLikes(ctx context.Context, commentID int) (int, error)

		CreateSms(ctx context.Context, s Sms) (Sms, error)
		CreateSmsQueue(ctx context.Context, q SmsQueue) (SmsQueue, error)
		QuerySmsQueue(ctx context.Context, filter SmsQueueFilter) ([]SmsQueue, error)
		UpdateSmsQueue(ctx context.Context, q SmsQueue) (SmsQueue, error)
	}

	// SMSClient sends text messages through a gateway and returns the gateway message id.
	SMSClient interface {
		Send(ctx context.Context, msisdn, message string) (string, error)
	}

	Service struct {
		repo   Repository
		sms    SMSClient
		logger core.Logger
	}
)

func NewService(repo Repository, sms SMSClient, logger core.Logger) *Service {
	return &Service{repo: repo, sms: sms, logger: logger}
}

// ReplacementContent is the text shown in place of a removed comment.
func ReplacementContent(adminBan bool, numDays int, profanity bool) string {
	if profanity {
		return "This comment includes a banned word so has been removed."
	}
	reporter := "the community"
	if adminBan {
		reporter = "a moderator"
	}
	unit := "days"
	if numDays == 1 {
		unit = "day"
	}
	return fmt.Sprintf(
		"This comment has been reported by %s and the user has been banned from commenting for %d %s.",
		reporter, numDays, unit,
	)
}

// ContainsProfanity reports whether text contains a stored profanity as a whole word, ignoring case.
func (svc *Service) ContainsProfanity(ctx context.Context, text string) (bool, error) {
	profanities, err := svc.repo.QueryProfanities(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range profanities {
		word := strings.TrimSpace(p.Word)
		if word == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		if err != nil {
			return false, errors.Wrapf(err, "compiling profanity %q", word)
		}
		if re.MatchString(text) {
			return true, nil
		}
	}
	return false, nil
}

// PostComment publishes a comment, replacing its content when it contains a profanity.
func (svc *Service) PostComment(ctx context.Context, c PostComment) (PostComment, error) {
	profane, err := svc.ContainsProfanity(ctx, c.Content)
	if err != nil {
		return PostComment{}, err
	}
	if profane {
		c.OriginalContent = c.Content
		c.Content = ReplacementContent(false, 0, true)
		c.Moderated = true
	}
	c.PublishDate = nowFunc()
	return svc.repo.CreateComment(ctx, c)
}

// ReportUserPost removes a comment on behalf of banningUser and bans its author for numDays days.
// No new ban is created when an existing one already covers the period.
func (svc *Service) ReportUserPost(ctx context.Context, commentID int, banningUser user.User, numDays int) (PostComment, error) {
	if numDays < 1 {
		return PostComment{}, ErrInvalidBanDays
	}
	c, err := svc.repo.GetComment(ctx, commentID)
	if err != nil {
		return PostComment{}, err
	}

	now := nowFunc()
	if c.OriginalContent == "" {
		c.OriginalContent = c.Content
	}
	c.Content = ReplacementContent(banningUser.IsAdmin(), numDays, false)
	c.Moderated = true
	c.UnmoderatedBy = null.IntFrom(banningUser.ID)
	c.UnmoderatedDate = null.TimeFrom(now)
	if c, err = svc.repo.UpdateComment(ctx, c); err != nil {
		return PostComment{}, errors.Wrap(err, "updating comment")
	}

	tillWhen := endOfDay(now.AddDate(0, 0, numDays-1))
	covering, err := svc.repo.QueryBans(ctx, BanFilter{BannedUserID: c.AuthorID, TillFrom: tillWhen})
	if err != nil {
		return c, err
	}
	if len(covering) > 0 {
		return c, nil
	}
	_, err = svc.repo.CreateBan(ctx, Ban{
		BannedUserID: c.AuthorID,
		BanningUser:  banningUser.ID,
		When:         now,
		TillWhen:     tillWhen,
		SourceType:   SourceComment,
		SourceID:     c.ID,
	})
	return c, errors.Wrap(err, "creating ban")
}

// UserBans returns the bans of userID that are still in force.
func (svc *Service) UserBans(ctx context.Context, userID int) ([]Ban, error) {
	return svc.repo.QueryBans(ctx, BanFilter{BannedUserID: userID, TillFrom: nowFunc()})
}

// Like records userID liking commentID. Liking twice keeps a single like.
func (svc *Service) Like(ctx context.Context, userID, commentID int) (PostCommentLike, error) {
	like, err := svc.repo.GetLike(ctx, userID, commentID)
	if err == nil {
		return like, nil
	}
	if errors.Cause(err) != ErrLikeNotFound {
		return PostCommentLike{}, err
	}
	if _, err = svc.repo.GetComment(ctx, commentID); err != nil {
		return PostCommentLike{}, err
	}
	return svc.repo.CreateLike(ctx, PostCommentLike{UserID: userID, CommentID: commentID, LikedAt: nowFunc()})
}

func (svc *Service) Unlike(ctx context.Context, userID, commentID int) error {
	err := svc.repo.DeleteLike(ctx, userID, commentID)
	if errors.Cause(err) == ErrLikeNotFound {
		return nil
	}
	return err
}

func (svc *Service) CountLikes(ctx context.Context, commentID int) (int, error) {
	return svc.repo.CountLikes(ctx, commentID)
}
