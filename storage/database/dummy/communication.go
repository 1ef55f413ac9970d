package dummydb

import (
	"context"

	"github.com/digitme/digit/core/communication"
)

type communicationRepository struct {
	db *DB
}

var _ communication.Repository = (*communicationRepository)(nil) // interface compliance check

func NewCommunicationRepository(db *DB) communication.Repository {
	return &communicationRepository{db: db}
}

func (repo *communicationRepository) CreatePost(_ context.Context, p communication.Post) (communication.Post, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	p.ID = repo.db.posts.nextPK()
	repo.db.posts.rows[p.ID] = p
	return p, nil
}

func (repo *communicationRepository) CreateComment(_ context.Context, c communication.PostComment) (communication.PostComment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	c.ID = repo.db.comments.nextPK()
	repo.db.comments.rows[c.ID] = c
	return c, nil
}

func (repo *communicationRepository) GetComment(_ context.Context, id int) (communication.PostComment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if c, ok := repo.db.comments.rows[id]; ok {
		return c, nil
	}
	return communication.PostComment{}, communication.ErrCommentNotFound
}

func (repo *communicationRepository) UpdateComment(_ context.Context, c communication.PostComment) (communication.PostComment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	if _, ok := repo.db.comments.rows[c.ID]; !ok {
		return communication.PostComment{}, communication.ErrCommentNotFound
	}
	repo.db.comments.rows[c.ID] = c
	return c, nil
}

func (repo *communicationRepository) CreateBan(_ context.Context, b communication.Ban) (communication.Ban, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	b.ID = repo.db.bans.nextPK()
	repo.db.bans.rows[b.ID] = b
	return b, nil
}

func (repo *communicationRepository) QueryBans(_ context.Context, filter communication.BanFilter) ([]communication.Ban, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.bans.filter(func(b communication.Ban) bool {
		if filter.BannedUserID != 0 && b.BannedUserID != filter.BannedUserID {
			return false
		}
		return filter.TillFrom.IsZero() || !b.TillWhen.Before(filter.TillFrom)
	}), nil
}

func (repo *communicationRepository) CreateProfanity(_ context.Context, p communication.Profanity) (communication.Profanity, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	p.ID = repo.db.profanities.nextPK()
	repo.db.profanities.rows[p.ID] = p
	return p, nil
}

func (repo *communicationRepository) QueryProfanities(context.Context) ([]communication.Profanity, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.profanities.all(), nil
}

func (repo *communicationRepository) GetLike(_ context.Context, userID, commentID int) (communication.PostCommentLike, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	for _, l := range repo.db.likes.all() {
		if l.UserID == userID && l.CommentID == commentID {
			return l, nil
		}
	}
	return communication.PostCommentLike{}, communication.ErrLikeNotFound
}

func (repo *communicationRepository) CreateLike(_ context.Context, l communication.PostCommentLike) (communication.PostCommentLike, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	l.ID = repo.db.likes.nextPK()
	repo.db.likes.rows[l.ID] = l
	return l, nil
}

func (repo *communicationRepository) DeleteLike(_ context.Context, userID, commentID int) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for id, l := range repo.db.likes.rows {
		if l.UserID == userID && l.CommentID == commentID {
			delete(repo.db.likes.rows, id)
			return nil
		}
	}
	return communication.ErrLikeNotFound
}

func (repo *communicationRepository) CountLikes(_ context.Context, commentID int) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	var n int
	for _, l := range repo.db.likes.rows {
		if l.CommentID == commentID {
			n++
		}
	}
	return n, nil
}

func (repo *communicationRepository) CreateSms(_ context.Context, s communication.Sms) (communication.Sms, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	s.ID = repo.db.sms.nextPK()
	repo.db.sms.rows[s.ID] = s
	return s, nil
}

func (repo *communicationRepository) CreateSmsQueue(_ context.Context, q communication.SmsQueue) (communication.SmsQueue, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	q.ID = repo.db.smsQueue.nextPK()
	repo.db.smsQueue.rows[q.ID] = q
	return q, nil
}

func (repo *communicationRepository) QuerySmsQueue(_ context.Context, filter communication.SmsQueueFilter) ([]communication.SmsQueue, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.smsQueue.filter(func(q communication.SmsQueue) bool {
		if !filter.DueBefore.IsZero() && q.SendDate.After(filter.DueBefore) {
			return false
		}
		return filter.Sent == nil || q.Sent == *filter.Sent
	}), nil
}

func (repo *communicationRepository) UpdateSmsQueue(_ context.Context, q communication.SmsQueue) (communication.SmsQueue, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.smsQueue.rows[q.ID] = q
	return q, nil
}
