// Package worker runs ingestion jobs on an elastic pool of goroutines.
package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/job"
	"github.com/akolanti/docchat/internal/metrics"
	"github.com/akolanti/docchat/internal/rag"
	"github.com/akolanti/docchat/pkg/logger_i"
)

type Pool struct {
	jobService *job.Service
	ragService rag.Service

	stopWorkerChannel chan bool
	dispatcherDone    chan struct{}
	workerWaitGroup   sync.WaitGroup
	stopOnce          sync.Once

	currentWorkerCount int64
	minWorkerCount     int64
	maxWorkerCount     int64
	idleTimeout        time.Duration
	jobTimeout         time.Duration
	logger             *logger_i.Logger
}

type Option func(*Pool)

func WithBounds(minWorkers, maxWorkers int64) Option {
	return func(p *Pool) {
		p.minWorkerCount = minWorkers
		p.maxWorkerCount = maxWorkers
	}
}

func WithIdleTimeout(d time.Duration) Option {
	return func(p *Pool) { p.idleTimeout = d }
}

func WithJobTimeout(d time.Duration) Option {
	return func(p *Pool) { p.jobTimeout = d }
}

func NewPool(jobService *job.Service, ragService rag.Service, opts ...Option) *Pool {
	p := &Pool{
		jobService:        jobService,
		ragService:        ragService,
		stopWorkerChannel: make(chan bool),
		dispatcherDone:    make(chan struct{}),
		minWorkerCount:    config.MinWorkerCount,
		maxWorkerCount:    config.MaxWorkerCount,
		idleTimeout:       config.IdleWorkerTimeout,
		jobTimeout:        config.IngestJobTimeout,
		logger:            logger_i.NewLogger("WorkerPool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the dispatcher, which creates the first worker and one more
// per dispatch signal up to the maximum.
func (p *Pool) Start() {
	p.logger.Info("Initializing worker pool", "min", p.minWorkerCount, "max", p.maxWorkerCount)
	go p.dispatcher()
}

// Stop signals every worker and waits for in-flight jobs to finish. Jobs still
// queued are abandoned so their documents do not stay processing.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopWorkerChannel)
		<-p.dispatcherDone
		p.workerWaitGroup.Wait()
		n := p.drainQueue()
		p.logger.Info("Worker pool stopped", "abandonedJobs", n)
	})
}

func (p *Pool) drainQueue() int {
	n := 0
	for {
		select {
		case queued := <-p.jobService.JobChannel:
			metrics.DecrementJobsInQueue()
			p.abandonJob(queued, interruptedByShutdown)
			n++
		default:
			return n
		}
	}
}

func (p *Pool) WorkerCount() int64 {
	return atomic.LoadInt64(&p.currentWorkerCount)
}

func (p *Pool) dispatcher() {
	defer close(p.dispatcherDone)
	p.createWorker()
	p.logger.Info("Dispatcher started")
	for {
		select {
		case <-p.jobService.DispatcherChannel:
			if p.WorkerCount() < p.maxWorkerCount {
				p.logger.Info("Creating new worker", "workerCount", p.WorkerCount())
				p.createWorker()
			}
		case <-p.stopWorkerChannel:
			return
		}
	}
}

func (p *Pool) createWorker() {
	p.workerWaitGroup.Add(1)
	atomic.AddInt64(&p.currentWorkerCount, 1)
	metrics.IncrementActiveWorkerCount()
	go p.worker()
}

func (p *Pool) worker() {
	idle := time.NewTimer(p.idleTimeout)
	defer idle.Stop()
	for {
		// a stop signal wins over queued work
		select {
		case <-p.stopWorkerChannel:
			p.stopWorker()
			return
		default:
		}

		select {
		case currentJob := <-p.jobService.JobChannel:
			metrics.DecrementJobsInQueue()
			p.executeJob(currentJob)
			idle.Reset(p.idleTimeout)

		case <-p.stopWorkerChannel:
			p.stopWorker()
			return

		case <-idle.C:
			if p.tryRetire() {
				p.removeWorker("Idle worker timeout")
				return
			}
			idle.Reset(p.idleTimeout)
		}
	}
}

// tryRetire takes this worker out of the count unless that would drop the
// pool below its minimum.
func (p *Pool) tryRetire() bool {
	for {
		n := atomic.LoadInt64(&p.currentWorkerCount)
		if n <= p.minWorkerCount {
			return false
		}
		if atomic.CompareAndSwapInt64(&p.currentWorkerCount, n, n-1) {
			return true
		}
	}
}

func (p *Pool) stopWorker() {
	atomic.AddInt64(&p.currentWorkerCount, -1)
	p.removeWorker("Stop worker signal received")
}

// removeWorker runs after the worker left the count.
func (p *Pool) removeWorker(reason string) {
	metrics.DecrementActiveWorkerCount()
	p.logger.Info("Removed worker", "reason", reason, "workerCount", p.WorkerCount())
	p.workerWaitGroup.Done()
}
