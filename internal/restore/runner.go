package restore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/calvinalkan/docnum/internal/lockfile"
)

// LockFileName is the lock taken in the output root while a job runs. It
// keeps two processes from restoring into the same folder.
const LockFileName = ".restore.lock"

// Dispatcher runs f on the caller's thread of choice (a UI event loop, for
// instance). It must eventually call f exactly once.
type Dispatcher func(f func())

// Runner runs at most one restore job at a time on a worker goroutine.
type Runner struct {
	engine   *Engine
	dispatch Dispatcher
	log      *zap.Logger

	mu  sync.Mutex
	job *Job
}

// NewRunner returns a Runner. A nil dispatch calls back on the worker.
func NewRunner(e *Engine, dispatch Dispatcher) *Runner {
	if dispatch == nil {
		dispatch = func(f func()) { f() }
	}

	return &Runner{engine: e, dispatch: dispatch, log: e.log}
}

// Job is one running restore.
type Job struct {
	cancel context.CancelCauseFunc
	done   chan struct{}

	report *Report
	err    error
}

// Cancel stops the job after the record it is working on. The job's error
// then wraps [ErrCanceled].
func (j *Job) Cancel() {
	j.cancel(ErrCanceled)
}

// Done is closed once the job has finished and onDone was dispatched.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes and returns its outcome.
func (j *Job) Wait() (*Report, error) {
	<-j.done

	return j.report, j.err
}

// Running reports whether a job is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.job != nil
}

// Start launches a restore of dbPath into outputRoot and returns at once.
// onProgress and onDone (either may be nil) go through the dispatcher.
// Start fails with [ErrInProgress] while another job of this runner, or any
// other process, restores into outputRoot.
func (r *Runner) Start(ctx context.Context, dbPath, outputRoot string, onProgress func(Progress), onDone func(*Report, error)) (*Job, error) {
	if ctx == nil {
		return nil, errors.New("start restore: context is nil")
	}

	if outputRoot == "" {
		return nil, errors.New("start restore: output root is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.job != nil {
		return nil, ErrInProgress
	}

	lock, err := lockfile.TryLock(filepath.Join(outputRoot, LockFileName))
	if errors.Is(err, lockfile.ErrWouldBlock) {
		return nil, fmt.Errorf("%w: %w", ErrInProgress, err)
	}

	if err != nil {
		return nil, fmt.Errorf("start restore: %w", err)
	}

	jobCtx, cancel := context.WithCancelCause(ctx)

	job := &Job{cancel: cancel, done: make(chan struct{})}
	r.job = job

	progress := onProgress
	if progress != nil {
		progress = func(p Progress) {
			r.dispatch(func() { onProgress(p) })
		}
	}

	go func() {
		defer close(job.done)

		job.report, job.err = r.engine.RestoreAll(jobCtx, dbPath, outputRoot, progress)

		cancel(nil)

		closeErr := lock.Close()
		if closeErr != nil {
			r.log.Warn("release restore lock", zap.String("path", lock.Path()), zap.Error(closeErr))
		}

		r.mu.Lock()
		r.job = nil
		r.mu.Unlock()

		if onDone != nil {
			r.dispatch(func() { onDone(job.report, job.err) })
		}
	}()

	return job, nil
}
