package printer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus is the lifecycle state of a print job
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobPrinting  JobStatus = "printing"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

const queueDepth = 64

// PrintFunc performs one complete print attempt
type PrintFunc func(ctx context.Context) (*Confirmation, error)

// PrintJob is a job in the spooler
type PrintJob struct {
	ID           string        `json:"id"`
	Printer      string        `json:"printer"`
	Status       JobStatus     `json:"status"`
	Retries      int           `json:"retries"`
	Error        string        `json:"error,omitempty"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	FinishedAt   time.Time     `json:"finished_at,omitempty"`

	print PrintFunc
	done  chan struct{}
}

// JobEvent is published whenever a job changes state
type JobEvent struct {
	Type string   `json:"type"`
	Job  PrintJob `json:"job"`
}

// Spooler runs print jobs one at a time per printer. Jobs for different
// printers run concurrently.
type Spooler struct {
	mu          sync.Mutex
	jobs        map[string]*PrintJob
	queues      map[string]chan *PrintJob
	subscribers []func(JobEvent)

	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSpooler creates a spooler. A failed job is attempted again from the
// beginning up to maxRetries times.
func NewSpooler(maxRetries int, retryDelay time.Duration, logger *zap.Logger) *Spooler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Spooler{
		jobs:       make(map[string]*PrintJob),
		queues:     make(map[string]chan *PrintJob),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     logger.With(zap.String("component", "spooler")),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnEvent registers a callback for job events. Callbacks run on worker
// goroutines and must not block.
func (s *Spooler) OnEvent(fn func(JobEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Submit queues a job for printer and returns a snapshot of it
func (s *Spooler) Submit(printer string, print PrintFunc) (PrintJob, error) {
	s.mu.Lock()

	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return PrintJob{}, fmt.Errorf("spooler stopped")
	}

	job := &PrintJob{
		ID:        uuid.New().String(),
		Printer:   printer,
		Status:    JobQueued,
		CreatedAt: time.Now(),
		print:     print,
		done:      make(chan struct{}),
	}

	queue, ok := s.queues[printer]
	if !ok {
		queue = make(chan *PrintJob, queueDepth)
		s.queues[printer] = queue
		s.wg.Add(1)
		go s.worker(queue)
	}
	if len(queue) == cap(queue) {
		s.mu.Unlock()
		return PrintJob{}, fmt.Errorf("print queue for %s is full", printer)
	}

	s.jobs[job.ID] = job
	snapshot := *job
	s.mu.Unlock()

	s.publish("job_queued", &snapshot)

	select {
	case queue <- job:
	case <-s.ctx.Done():
		return PrintJob{}, fmt.Errorf("spooler stopped")
	}
	return snapshot, nil
}

// Wait blocks until the job finishes or ctx is done
func (s *Spooler) Wait(ctx context.Context, id string) (PrintJob, error) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return PrintJob{}, fmt.Errorf("job not found: %s", id)
	}

	select {
	case <-job.done:
	case <-ctx.Done():
		return PrintJob{}, ctx.Err()
	}

	if snapshot := s.GetJob(id); snapshot != nil {
		return *snapshot, nil
	}
	return PrintJob{}, fmt.Errorf("job not found: %s", id)
}

func (s *Spooler) worker(queue chan *PrintJob) {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case job := <-queue:
			if s.ctx.Err() != nil {
				return
			}
			s.process(job)
		}
	}
}

func (s *Spooler) process(job *PrintJob) {
	defer close(job.done)

	for {
		s.update(job, func(j *PrintJob) { j.Status = JobPrinting }, "job_printing")

		conf, err := job.print(s.ctx)
		if err == nil {
			s.update(job, func(j *PrintJob) {
				j.Status = JobCompleted
				j.Error = ""
				j.Confirmation = conf
				j.FinishedAt = time.Now()
			}, "job_completed")
			s.logger.Info("Print job completed", zap.String("job_id", job.ID), zap.String("printer", job.Printer))
			return
		}

		retry := false
		s.update(job, func(j *PrintJob) {
			j.Error = err.Error()
			if j.Retries < s.maxRetries && s.ctx.Err() == nil {
				j.Retries++
				j.Status = JobQueued
				retry = true
				return
			}
			j.Status = JobFailed
			j.FinishedAt = time.Now()
		}, "")

		if !retry {
			s.logger.Error("Print job failed", zap.String("job_id", job.ID), zap.Int("retries", job.Retries), zap.Error(err))
			s.publish("job_failed", s.GetJob(job.ID))
			return
		}

		s.logger.Warn("Print job failed, retrying",
			zap.String("job_id", job.ID),
			zap.Int("attempt", job.Retries),
			zap.Int("max_retries", s.maxRetries),
			zap.Error(err),
		)

		select {
		case <-time.After(s.retryDelay):
		case <-s.ctx.Done():
		}
	}
}

func (s *Spooler) update(job *PrintJob, fn func(*PrintJob), event string) {
	s.mu.Lock()
	fn(job)
	snapshot := *job
	s.mu.Unlock()

	if event != "" {
		s.publish(event, &snapshot)
	}
}

func (s *Spooler) publish(event string, job *PrintJob) {
	if job == nil {
		return
	}
	s.mu.Lock()
	subscribers := append([]func(JobEvent){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(JobEvent{Type: event, Job: *job})
	}
}

// GetJob returns a copy of a job, or nil
func (s *Spooler) GetJob(id string) *PrintJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	jobCopy := *job
	return &jobCopy
}

// GetAllJobs returns copies of all jobs, oldest first
func (s *Spooler) GetAllJobs() []*PrintJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]*PrintJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs
}

// ClearFinished removes completed and failed jobs
func (s *Spooler) ClearFinished() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, job := range s.jobs {
		if job.Status == JobCompleted || job.Status == JobFailed {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// Stop stops the workers after their current job. Jobs that never started
// are marked failed so their waiters return.
func (s *Spooler) Stop() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	var abandoned []PrintJob
	for _, queue := range s.queues {
	drain:
		for {
			select {
			case <-queue:
			default:
				break drain
			}
		}
	}
	for _, job := range s.jobs {
		if job.Status != JobQueued {
			continue
		}
		job.Status = JobFailed
		job.Error = "spooler stopped"
		job.FinishedAt = time.Now()
		close(job.done)
		abandoned = append(abandoned, *job)
	}
	s.mu.Unlock()

	for i := range abandoned {
		s.logger.Warn("Print job abandoned", zap.String("job_id", abandoned[i].ID), zap.String("printer", abandoned[i].Printer))
		s.publish("job_failed", &abandoned[i])
	}
}
