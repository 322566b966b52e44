package processing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one unit of work executed by the pool
type Job interface {
	ID() string
	Execute(ctx context.Context) error
	Timeout() time.Duration
}

// PoolConfig holds configuration for the worker pool
type PoolConfig struct {
	PoolSize        int           `json:"pool_size"`
	QueueSize       int           `json:"queue_size"`
	MaxJobTimeout   time.Duration `json:"max_job_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// DefaultPoolConfig returns default configuration
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		PoolSize:        8,
		QueueSize:       256,
		MaxJobTimeout:   30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// PoolStats is a point-in-time snapshot of pool activity
type PoolStats struct {
	PoolSize       int           `json:"pool_size"`
	QueuedJobs     int           `json:"queued_jobs"`
	CompletedJobs  int64         `json:"completed_jobs"`
	FailedJobs     int64         `json:"failed_jobs"`
	AverageLatency time.Duration `json:"average_latency"`
}

// Pool runs submitted jobs over a fixed set of workers with a bounded queue.
// Submit never blocks; a full queue is an error the caller handles.
type Pool struct {
	config   *PoolConfig
	jobQueue chan Job
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.RWMutex
	running bool

	completedJobs atomic.Int64
	failedJobs    atomic.Int64
	totalLatency  atomic.Int64
	jobCount      atomic.Int64
}

// NewPool creates a worker pool
func NewPool(config *PoolConfig) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config:   config,
		jobQueue: make(chan Job, config.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the workers
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("worker pool is already running")
	}

	for i := 0; i < p.config.PoolSize; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	p.running = true
	return nil
}

// Stop drains the workers gracefully
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return fmt.Errorf("worker pool is not running")
	}

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.config.ShutdownTimeout):
		return fmt.Errorf("worker pool shutdown timeout")
	case <-ctx.Done():
		return ctx.Err()
	}

	p.running = false
	return nil
}

// Submit enqueues a job. Returns an error when the pool is stopped or the
// queue is full.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return fmt.Errorf("worker pool is not running")
	}

	select {
	case p.jobQueue <- job:
		return nil
	default:
		return fmt.Errorf("job queue is full")
	}
}

// Stats returns current pool statistics
func (p *Pool) Stats() *PoolStats {
	stats := &PoolStats{
		PoolSize:      p.config.PoolSize,
		QueuedJobs:    len(p.jobQueue),
		CompletedJobs: p.completedJobs.Load(),
		FailedJobs:    p.failedJobs.Load(),
	}

	if n := p.jobCount.Load(); n > 0 {
		stats.AverageLatency = time.Duration(p.totalLatency.Load() / n)
	}
	return stats
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			if job == nil {
				return
			}
			p.runJob(job)

		case <-p.ctx.Done():
			return
		}
	}
}

// runJob executes a job under its timeout and records latency
func (p *Pool) runJob(job Job) {
	started := time.Now()

	timeout := job.Timeout()
	if timeout == 0 {
		timeout = p.config.MaxJobTimeout
	}

	ctx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()

	err := job.Execute(ctx)

	p.jobCount.Add(1)
	p.totalLatency.Add(int64(time.Since(started)))
	if err != nil {
		p.failedJobs.Add(1)
	} else {
		p.completedJobs.Add(1)
	}
}
