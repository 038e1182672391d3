package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobRequest asks for a named job to run either on a cron spec or once at RunAt.
type JobRequest struct {
	Name  string
	Cron  string
	RunAt time.Time
}

type ScheduledJob struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	Cron  string    `json:"cron,omitempty"`
	RunAt time.Time `json:"run_at,omitempty"`
}

// Scheduler is a registry of named jobs. Several scheduled instances of the
// same name may exist at once; callers that need one instance enforce it
// through ListJobs and CancelJob.
type Scheduler interface {
	Register(job Job)
	RunJob(ctx context.Context, req JobRequest) (string, error)
	ListJobs(ctx context.Context) ([]ScheduledJob, error)
	CancelJob(ctx context.Context, id string) error
	Start(ctx context.Context)
	Stop()
}

type entry struct {
	job     ScheduledJob
	entryID cron.EntryID
	seq     uint64
}

type CronScheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	parser   cron.Parser
	handlers map[string]Job
	entries  map[string]*entry
	seq      uint64
	ctx      context.Context
	now      func() time.Time
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron:     cron.New(cron.WithParser(parser)),
		parser:   parser,
		handlers: make(map[string]Job),
		entries:  make(map[string]*entry),
		now:      time.Now,
	}
}

func (c *CronScheduler) Register(job Job) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[job.Name()] = job
}

func (c *CronScheduler) RunJob(ctx context.Context, req JobRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.handlers[req.Name]
	if !ok {
		return "", fmt.Errorf("job %s is not registered", req.Name)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("job", req.Name), zap.String("spec", req.Cron))

	var sched cron.Schedule
	if req.Cron != "" {
		parsed, err := c.parser.Parse(req.Cron)
		if err != nil {
			logger.Error("schedule job failed", zap.Error(err))
			return "", err
		}
		sched = parsed
	} else {
		at := req.RunAt
		if earliest := c.now().Add(time.Second); at.Before(earliest) {
			at = earliest
		}
		req.RunAt = at
		sched = &onceSchedule{at: at}
	}

	id := uuid.NewString()
	c.seq++
	e := &entry{
		job: ScheduledJob{ID: id, Name: req.Name, Cron: req.Cron, RunAt: req.RunAt},
		seq: c.seq,
	}
	e.entryID = c.cron.Schedule(sched, cron.FuncJob(c.wrap(job, e)))
	c.entries[id] = e
	logger.Info("job scheduled", zap.String("id", id), zap.Time("run_at", req.RunAt))
	return id, nil
}

func (c *CronScheduler) ListJobs(ctx context.Context) ([]ScheduledJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	out := make([]ScheduledJob, 0, len(list))
	for _, e := range list {
		out = append(out, e.job)
	}
	return out, nil
}

func (c *CronScheduler) CancelJob(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil
	}
	c.cron.Remove(e.entryID)
	delete(c.entries, id)
	logutil.GetLogger(ctx).Info("job cancelled", zap.String("job", e.job.Name), zap.String("id", id))
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) wrap(job Job, e *entry) func() {
	var running atomic.Bool
	return func() {
		if e.job.Cron == "" {
			// one-shot entries leave the registry as soon as they fire
			_ = c.CancelJob(context.Background(), e.job.ID)
		}
		if !running.CompareAndSwap(false, true) {
			logutil.GetLogger(context.Background()).With(
				zap.String("job", job.Name()),
				zap.String("id", e.job.ID),
			).Info("job skipped: still running")
			return
		}
		defer running.Store(false)

		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		logger := logutil.GetLogger(ctx).With(
			zap.String("job", job.Name()),
			zap.String("id", e.job.ID),
			zap.String("spec", e.job.Cron),
		)
		start := time.Now()
		logger.Info("job started")
		err := job.Run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Info("job finished", zap.Duration("duration", elapsed))
	}
}

type onceSchedule struct {
	at time.Time
}

func (s *onceSchedule) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}
