// Package scheduler runs the periodic batch jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/digitme/digit/core"
	"github.com/digitme/digit/core/progression"
	"github.com/digitme/digit/core/report"
)

// Job names
const (
	GradeUp       = "gradeup"
	TeacherReport = "teacherreport"
	SMSQueue      = "smsqueue"
)

var ErrUnknownJob = errors.New("unknown job")

type (
	Job struct {
		Name    string
		Spec    string // standard 5 field cron expression; empty disables the job
		Timeout time.Duration
		Run     func(ctx context.Context) error
	}

	GradeUpper interface {
		Run(ctx context.Context, cycle int) (progression.Result, error)
	}

	ReportSender interface {
		SendTeacherReports(ctx context.Context) (report.Result, error)
	}

	QueueDrainer interface {
		DrainQueue(ctx context.Context) (int, error)
	}

	Scheduler struct {
		cron   *cron.Cron
		jobs   map[string]Job
		logger core.Logger
	}

	// cronLogger adapts core.Logger to cron.Logger.
	cronLogger struct {
		logger core.Logger
	}
)

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("cron: %s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s %v", msg, keysAndValues), err)
}

// Jobs returns the batch jobs with their configured schedules.
func Jobs(conf core.ScheduleConfig, engine GradeUpper, reports ReportSender, sms QueueDrainer) []Job {
	return []Job{
		{
			Name: GradeUp,
			Spec: conf.GradeUp,
			Run: func(ctx context.Context) error {
				_, err := engine.Run(ctx, progression.CurrentCycle())
				return err
			},
		},
		{
			Name:    TeacherReport,
			Spec:    conf.TeacherReport,
			Timeout: time.Hour,
			Run: func(ctx context.Context) error {
				_, err := reports.SendTeacherReports(ctx)
				return err
			},
		},
		{
			Name:    SMSQueue,
			Spec:    conf.SMSQueue,
			Timeout: 4 * time.Minute,
			Run: func(ctx context.Context) error {
				_, err := sms.DrainQueue(ctx)
				return err
			},
		},
	}
}

// New registers jobs on a UTC cron that never overlaps a job with itself.
func New(logger core.Logger, jobs ...Job) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:   make(map[string]Job, len(jobs)),
		logger: logger,
	}
	for _, job := range jobs {
		s.jobs[job.Name] = job
		if job.Spec == "" {
			logger.Info(fmt.Sprintf("job %s has no schedule: disabled", job.Name))
			continue
		}
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() { _ = s.run(context.Background(), job) }); err != nil {
			return nil, errors.Wrapf(err, "scheduling %s", job.Name)
		}
	}
	return s, nil
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	start := time.Now()
	s.logger.Info(fmt.Sprintf("job %s started", job.Name))
	if err := job.Run(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("job %s failed: %v", job.Name, err), err)
		return err
	}
	s.logger.Info(fmt.Sprintf("job %s done in %s", job.Name, time.Since(start).Round(time.Millisecond)))
	return nil
}

// RunNow runs the named job synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return errors.Wrapf(ErrUnknownJob, "%q", name)
	}
	return s.run(ctx, job)
}

// Scheduled returns the number of jobs registered on the cron.
func (s *Scheduler) Scheduled() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the cron and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
