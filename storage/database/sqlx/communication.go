package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/digitme/digit/core/communication"
)

type communicationRepository struct {
	db *sqlx.DB
}

var _ communication.Repository = (*communicationRepository)(nil) // interface compliance check

func NewCommunicationRepository(db *sqlx.DB) communication.Repository {
	return &communicationRepository{db: db}
}

func (repo *communicationRepository) CreatePost(ctx context.Context, p communication.Post) (communication.Post, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO posts (course_id, name, content, publish_date)
		VALUES (:course_id, :name, :content, :publish_date)`,
		p,
	)
	if err != nil {
		return communication.Post{}, errors.Wrap(err, "creating post")
	}
	p.ID = id
	return p, nil
}

func (repo *communicationRepository) CreateComment(ctx context.Context, c communication.PostComment) (communication.PostComment, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO post_comments
		(post_id, author_id, content, original_content, publish_date, moderated, unmoderated_by, unmoderated_date)
		VALUES (:post_id, :author_id, :content, :original_content, :publish_date, :moderated, :unmoderated_by, :unmoderated_date)`,
		c,
	)
	if err != nil {
		return communication.PostComment{}, errors.Wrap(err, "creating comment")
	}
	c.ID = id
	return c, nil
}

func (repo *communicationRepository) GetComment(ctx context.Context, id int) (communication.PostComment, error) {
	var c communication.PostComment
	err := getByID(ctx, repo.db, &c, "post_comments", id, communication.ErrCommentNotFound)
	return c, err
}

func (repo *communicationRepository) UpdateComment(ctx context.Context, c communication.PostComment) (communication.PostComment, error) {
	err := update(ctx, repo.db, `UPDATE post_comments SET
		content = :content, original_content = :original_content, moderated = :moderated,
		unmoderated_by = :unmoderated_by, unmoderated_date = :unmoderated_date
		WHERE id = :id`,
		c, communication.ErrCommentNotFound,
	)
	return c, err
}

func (repo *communicationRepository) CreateBan(ctx context.Context, b communication.Ban) (communication.Ban, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO bans
		(banned_user_id, banning_user_id, ban_when, till_when, source_type, source_id)
		VALUES (:banned_user_id, :banning_user_id, :ban_when, :till_when, :source_type, :source_id)`,
		b,
	)
	if err != nil {
		return communication.Ban{}, errors.Wrap(err, "creating ban")
	}
	b.ID = id
	return b, nil
}

func (repo *communicationRepository) QueryBans(ctx context.Context, filter communication.BanFilter) ([]communication.Ban, error) {
	var w where
	if filter.BannedUserID != 0 {
		w.add("banned_user_id = ?", filter.BannedUserID)
	}
	if !filter.TillFrom.IsZero() {
		w.add("till_when >= ?", filter.TillFrom.UTC())
	}
	var bans []communication.Ban
	err := selectWhere(ctx, repo.db, &bans, "SELECT * FROM bans", w, " ORDER BY id")
	return bans, errors.Wrap(err, "querying bans")
}

func (repo *communicationRepository) CreateProfanity(ctx context.Context, p communication.Profanity) (communication.Profanity, error) {
	id, err := insert(ctx, repo.db, "INSERT INTO profanities (word) VALUES (:word)", p)
	if err != nil {
		return communication.Profanity{}, errors.Wrap(err, "creating profanity")
	}
	p.ID = id
	return p, nil
}

func (repo *communicationRepository) QueryProfanities(ctx context.Context) ([]communication.Profanity, error) {
	var profanities []communication.Profanity
	err := repo.db.SelectContext(ctx, &profanities, "SELECT * FROM profanities ORDER BY id")
	return profanities, errors.Wrap(err, "querying profanities")
}

func likeWhere(userID, commentID int) where {
	var w where
	w.add("user_id = ?", userID)
	w.add("comment_id = ?", commentID)
	return w
}

func (repo *communicationRepository) GetLike(ctx context.Context, userID, commentID int) (communication.PostCommentLike, error) {
	var l communication.PostCommentLike
	err := getWhere(ctx, repo.db, &l, "SELECT * FROM post_comment_likes", likeWhere(userID, commentID), communication.ErrLikeNotFound)
	return l, err
}

func (repo *communicationRepository) CreateLike(ctx context.Context, l communication.PostCommentLike) (communication.PostCommentLike, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO post_comment_likes (user_id, comment_id, liked_at)
		VALUES (:user_id, :comment_id, :liked_at)`,
		l,
	)
	if err != nil {
		return communication.PostCommentLike{}, errors.Wrap(err, "creating like")
	}
	l.ID = id
	return l, nil
}

func (repo *communicationRepository) DeleteLike(ctx context.Context, userID, commentID int) error {
	w := likeWhere(userID, commentID)
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM post_comment_likes"+w.String()), w.args...)
	if err != nil {
		return errors.Wrap(err, "deleting like")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return communication.ErrLikeNotFound
	}
	return nil
}

func (repo *communicationRepository) CountLikes(ctx context.Context, commentID int) (int, error) {
	var w where
	w.add("comment_id = ?", commentID)
	n, err := count(ctx, repo.db, "SELECT COUNT(*) FROM post_comment_likes", w)
	return n, errors.Wrap(err, "counting likes")
}

func (repo *communicationRepository) CreateSms(ctx context.Context, s communication.Sms) (communication.Sms, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO sms (uuid, msisdn, message, sent, created_at)
		VALUES (:uuid, :msisdn, :message, :sent, :created_at)`,
		s,
	)
	if err != nil {
		return communication.Sms{}, errors.Wrap(err, "creating sms")
	}
	s.ID = id
	return s, nil
}

func (repo *communicationRepository) CreateSmsQueue(ctx context.Context, q communication.SmsQueue) (communication.SmsQueue, error) {
	id, err := insert(ctx, repo.db, `INSERT INTO sms_queue (msisdn, message, send_date, sent, sent_date)
		VALUES (:msisdn, :message, :send_date, :sent, :sent_date)`,
		q,
	)
	if err != nil {
		return communication.SmsQueue{}, errors.Wrap(err, "queueing sms")
	}
	q.ID = id
	return q, nil
}

func (repo *communicationRepository) QuerySmsQueue(ctx context.Context, filter communication.SmsQueueFilter) ([]communication.SmsQueue, error) {
	var w where
	if !filter.DueBefore.IsZero() {
		w.add("send_date <= ?", filter.DueBefore.UTC())
	}
	if filter.Sent != nil {
		w.add("sent = ?", *filter.Sent)
	}
	var queue []communication.SmsQueue
	err := selectWhere(ctx, repo.db, &queue, "SELECT * FROM sms_queue", w, " ORDER BY send_date, id")
	return queue, errors.Wrap(err, "querying sms queue")
}

func (repo *communicationRepository) UpdateSmsQueue(ctx context.Context, q communication.SmsQueue) (communication.SmsQueue, error) {
	err := update(ctx, repo.db, `UPDATE sms_queue SET
		msisdn = :msisdn, message = :message, send_date = :send_date, sent = :sent, sent_date = :sent_date
		WHERE id = :id`,
		q, errors.New("sms queue item not found"),
	)
	return q, err
}
