// Copyright (c) 2025 BVK Chaitanya

// Package job implements an api to manage long-running activities that can be
// paused or canceled through their context.Context argument. The scanner and
// the position tracker loops run as jobs so that shutdown is deterministic
// and an in-flight step is never abandoned halfway.
package job

import (
	"context"
	"errors"
	"sync"
)

type State string

const (
	PAUSED    State = "PAUSED"
	RUNNING   State = "RUNNING"
	COMPLETED State = "COMPLETED"
	CANCELED  State = "CANCELED"
	FAILED    State = "FAILED"
)

func IsFinal(s State) bool {
	return s == COMPLETED || s == CANCELED || s == FAILED
}

type Func func(ctx context.Context) error

var (
	errPause  = errors.New("job is paused")
	errCancel = errors.New("job is canceled")
)

type Job struct {
	cancel context.CancelCauseFunc

	wg sync.WaitGroup

	mu sync.Mutex

	status State

	err error
}

// Run starts the given function as a job. The function receives a context
// derived from the input context; it is expected to return promptly with
// context.Cause(ctx) after the context is canceled.
func Run(f Func, ctx context.Context) *Job {
	jctx, jcancel := context.WithCancelCause(ctx)
	j := &Job{
		cancel: jcancel,
		status: RUNNING,
	}
	j.wg.Add(1)
	go j.goRun(jctx, f)
	return j
}

func (j *Job) goRun(ctx context.Context, f Func) {
	defer j.wg.Done()

	err := f(ctx)

	j.mu.Lock()
	defer j.mu.Unlock()

	j.err = err
	switch {
	case err == nil:
		j.status = COMPLETED
	case errors.Is(err, errPause):
		j.status = PAUSED
	case errors.Is(err, errCancel):
		j.status = CANCELED
	default:
		j.status = FAILED
	}
}

// Pause stops the job with the intent to resume it later. The caller must
// Wait for the in-flight step to finish.
func (j *Job) Pause() {
	j.cancel(errPause)
}

// Cancel stops the job permanently.
func (j *Job) Cancel() {
	j.cancel(errCancel)
}

// Wait blocks till the job function has returned.
func (j *Job) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		j.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Err returns the error returned by the job function. Returns nil while the
// job is still running.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}
