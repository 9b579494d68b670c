// Package background ejecuta tareas best-effort fuera del camino crítico.
package background

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stray-match/internal/platform/logger"
	"stray-match/internal/platform/metrics"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
	defaultTimeout   = 15 * time.Second
)

// Task es una unidad best-effort. El error solo se loguea.
type Task func(ctx context.Context) error

// Executor recibe tareas fire-and-forget. Submit nunca bloquea al caller:
// devuelve false si la tarea se descartó (cola llena o executor cerrado).
type Executor interface {
	Submit(name string, task Task) bool
}

type job struct {
	name string
	task Task
}

// Pool es un Executor con N workers y cola acotada.
type Pool struct {
	log     logger.Logger
	workers int
	timeout time.Duration

	jobs chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	start  sync.Once
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.jobs = make(chan job, n)
		}
	}
}

// WithTaskTimeout acota cada tarea; las tareas no heredan el ctx del request.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPool(log logger.Logger, opts ...Option) *Pool {
	if log == nil {
		log = logger.Nop()
	}
	p := &Pool{
		log:     log.With(map[string]any{"component": "background"}),
		workers: defaultWorkers,
		timeout: defaultTimeout,
		jobs:    make(chan job, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start lanza los workers. Es idempotente.
func (p *Pool) Start() {
	p.start.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.run()
		}
	})
}

func (p *Pool) Submit(name string, task Task) bool {
	if task == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		metrics.RecordBackgroundTask(name, "dropped")
		p.log.Warn("executor closed, task dropped", map[string]any{"task": name})
		return false
	}

	select {
	case p.jobs <- job{name: name, task: task}:
		return true
	default:
		metrics.RecordBackgroundTask(name, "dropped")
		p.log.Warn("executor queue full, task dropped", map[string]any{"task": name})
		return false
	}
}

// Shutdown deja de aceptar tareas y espera a que se drene la cola.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background shutdown: %w", ctx.Err())
	}
}

func (p *Pool) run() {
	defer p.wg.Done()
	for j := range p.jobs {
		runTask(p.log, p.timeout, j)
	}
}

// Inline ejecuta la tarea en el mismo goroutine (tests, CLIs).
type Inline struct {
	Log     logger.Logger
	Timeout time.Duration
}

func (i Inline) Submit(name string, task Task) bool {
	if task == nil {
		return false
	}
	log := i.Log
	if log == nil {
		log = logger.Nop()
	}
	timeout := i.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runTask(log, timeout, job{name: name, task: task})
	return true
}

func runTask(log logger.Logger, timeout time.Duration, j job) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := safeCall(ctx, j.task)
	if err != nil {
		metrics.RecordBackgroundTask(j.name, "failed")
		log.Error("background task failed", map[string]any{
			"task":  j.name,
			"error": err,
		})
		return
	}
	metrics.RecordBackgroundTask(j.name, "ok")
}

func safeCall(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Sprint("panic: ", r))
		}
	}()
	return task(ctx)
}
