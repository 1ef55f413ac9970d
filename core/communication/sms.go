package communication

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// SendSMS sends message to msisdn and stores the outcome. sent is false when the gateway refused it.
func (svc *Service) SendSMS(ctx context.Context, msisdn, message string) (sms Sms, sent bool, err error) {
	uuid, sendErr := svc.sms.Send(ctx, msisdn, message)
	if sendErr != nil {
		svc.logger.Error(fmt.Sprintf("sending sms to %s: %v", msisdn, sendErr), sendErr)
	}
	sms, err = svc.repo.CreateSms(ctx, Sms{
		UUID:      uuid,
		Msisdn:    msisdn,
		Message:   message,
		Sent:      sendErr == nil,
		CreatedAt: nowFunc(),
	})
	if err != nil {
		return Sms{}, false, errors.Wrap(err, "saving sms")
	}
	return sms, sms.Sent, nil
}

// QueueSMS schedules message for delivery by DrainQueue.
func (svc *Service) QueueSMS(ctx context.Context, q SmsQueue) (SmsQueue, error) {
	q.Sent = false
	q.SentDate = null.Time{}
	if q.SendDate.IsZero() {
		q.SendDate = nowFunc()
	}
	return svc.repo.CreateSmsQueue(ctx, q)
}

// DrainQueue sends every due and unsent queued message. Failed messages stay queued.
func (svc *Service) DrainQueue(ctx context.Context) (int, error) {
	unsent := false
	queue, err := svc.repo.QuerySmsQueue(ctx, SmsQueueFilter{DueBefore: nowFunc(), Sent: &unsent})
	if err != nil {
		return 0, errors.Wrap(err, "querying sms queue")
	}

	var count int
	for _, q := range queue {
		if err = ctx.Err(); err != nil {
			return count, err
		}
		_, sent, err := svc.SendSMS(ctx, q.Msisdn, q.Message)
		if err != nil {
			return count, err
		}
		if !sent {
			continue
		}
		q.Sent = true
		q.SentDate = null.TimeFrom(nowFunc())
		if _, err = svc.repo.UpdateSmsQueue(ctx, q); err != nil {
			return count, errors.Wrapf(err, "marking sms %d sent", q.ID)
		}
		count++
	}
	svc.logger.Info(fmt.Sprintf("sms queue drained: %d/%d sent", count, len(queue)))
	return count, nil
}
