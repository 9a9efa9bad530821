package marcher

import (
	"sync"
	"time"
)

// Status is the render session lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusRendering
	StatusNavigating
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRendering:
		return "rendering"
	case StatusNavigating:
		return "navigating"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// progressInterval is the sampling cadence of the progress poller.
const progressInterval = 50 * time.Millisecond

// Event is a session notification delivered on the Events channel.
// Concrete types: StatusEvent, ParamsEvent, ProgressEvent, CompleteEvent,
// ErrorEvent.
type Event interface{ event() }

// StatusEvent reports a lifecycle transition.
type StatusEvent struct{ Status Status }

// ParamsEvent reports that the parameter set changed.
type ParamsEvent struct{ Params Params }

// ProgressEvent reports the march-phase completion fraction of the
// current job.
type ProgressEvent struct{ Fraction float64 }

// CompleteEvent carries a finished render.
type CompleteEvent struct {
	RGBA    []byte
	Width   int
	Height  int
	Elapsed time.Duration
}

// ErrorEvent reports a failed render.
type ErrorEvent struct{ Err error }

func (StatusEvent) event()   {}
func (ParamsEvent) event()   {}
func (ProgressEvent) event() {}
func (CompleteEvent) event() {}
func (ErrorEvent) event()    {}

// Session sequences the render lifecycle: it owns the current parameter
// set, drives the pool, and republishes progress, completion and errors as
// events. It is the single source of truth for what gets rendered next.
type Session struct {
	mu     sync.Mutex
	pool   *Pool
	params Params
	status Status
	result *RenderResult
	events chan Event
}

// NewSession creates a session over a fresh pool with default parameters.
// The pool is initialized lazily on the first Render or QuickPreview call.
func NewSession(load KernelLoader) *Session {
	return &Session{
		pool:   NewPool(load),
		params: DefaultParams(),
		status: StatusIdle,
		events: make(chan Event, 64),
	}
}

// Events returns the session notification channel. Events are dropped,
// not blocked on, when no consumer keeps up.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) publish(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// Pool exposes the underlying coordinator, mainly for Progress sampling
// and Destroy on shutdown.
func (s *Session) Pool() *Pool {
	return s.pool
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) setStatus(st Status) {
	s.mu.Lock()
	changed := s.status != st
	s.status = st
	s.mu.Unlock()
	if changed {
		s.publish(StatusEvent{Status: st})
	}
}

// Params returns a copy of the current parameter set.
func (s *Session) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// UpdateParams applies a partial parameter change under the session lock
// and publishes a change notification. It never triggers a render:
// deciding what to render and when to render are separate concerns, so
// callers may batch any number of updates before calling Render.
func (s *Session) UpdateParams(patch func(*Params)) {
	s.mu.Lock()
	patch(&s.params)
	params := s.params
	s.mu.Unlock()
	s.publish(ParamsEvent{Params: params})
}

// Result returns the most recent completed render, or nil.
func (s *Session) Result() *RenderResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Render runs one full-resolution job with the current parameters,
// initializing the pool on first use. Progress is republished as events
// while the job runs. On success the session returns to idle and retains
// the result; on failure it transitions to error and the error is
// returned to the caller as well. Errors are not sticky: a later Render
// starts from a clean slate.
func (s *Session) Render() (*RenderResult, error) {
	s.mu.Lock()
	params := s.params
	s.mu.Unlock()

	if err := s.pool.Init(params.Workers); err != nil {
		s.fail(err)
		return nil, err
	}

	s.setStatus(StatusRendering)
	job := NewRenderJob(params)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pollProgress(stop)
	}()

	res, err := s.pool.Render(job)
	close(stop)
	wg.Wait()

	if err != nil {
		s.fail(err)
		return nil, err
	}

	s.mu.Lock()
	s.result = res
	s.mu.Unlock()

	s.publish(ProgressEvent{Fraction: 1})
	s.publish(CompleteEvent{
		RGBA:    res.RGBA,
		Width:   res.Width,
		Height:  res.Height,
		Elapsed: res.Elapsed,
	})
	s.setStatus(StatusIdle)
	return res, nil
}

// QuickPreview runs the single-worker low-resolution path with the
// current parameters, for continuous feedback during navigation. The
// result dimensions are the full size divided by Params.PreviewScale.
func (s *Session) QuickPreview() (*RenderResult, error) {
	s.mu.Lock()
	params := s.params
	s.mu.Unlock()

	if err := s.pool.Init(params.Workers); err != nil {
		s.fail(err)
		return nil, err
	}

	s.setStatus(StatusNavigating)
	job, w, h := NewQuickJob(params)

	start := time.Now()
	rgba, err := s.pool.RenderQuick(job, w, h)
	if err != nil {
		s.fail(err)
		return nil, err
	}

	res := &RenderResult{RGBA: rgba, Width: w, Height: h, Elapsed: time.Since(start)}
	s.publish(CompleteEvent{RGBA: rgba, Width: w, Height: h, Elapsed: res.Elapsed})
	s.setStatus(StatusIdle)
	return res, nil
}

// CancelRender requests cooperative cancellation of the in-flight job and
// optimistically returns the session to idle. The pending Render call, if
// any, still resolves on its own with a partial result the caller may
// discard. Calling this with nothing in flight is a no-op.
func (s *Session) CancelRender() {
	s.pool.Cancel()
	s.setStatus(StatusIdle)
}

// Close tears down the pool.
func (s *Session) Close() {
	s.pool.Destroy()
	s.setStatus(StatusIdle)
}

func (s *Session) fail(err error) {
	s.publish(ErrorEvent{Err: err})
	s.setStatus(StatusError)
}

// pollProgress samples the pool on a steady cadence and republishes the
// fraction until stopped. Sampling is non-blocking by construction; the
// renderer never waits on the poller.
func (s *Session) pollProgress(stop <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	last := -1.0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frac := s.pool.Progress()
			if frac != last {
				s.publish(ProgressEvent{Fraction: frac})
				last = frac
			}
		}
	}
}
