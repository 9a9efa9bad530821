package marcher

import (
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxWorkers caps the pool size; beyond this the per-worker scheduling
// overhead outweighs any rendering gain.
const maxWorkers = 16

// Pool is the job coordinator. It owns a fixed set of worker execution
// contexts and runs one render job at a time through the two-phase
// march→paint pipeline over shared frame memory. The pool itself never
// writes into the G-buffer or RGBA regions; it only reads the RGBA bytes
// after the paint barrier has fired.
type Pool struct {
	mu      sync.Mutex // guards workers and current
	jobMu   sync.Mutex // serializes Render calls
	quickMu sync.Mutex // serializes RenderQuick calls
	load    KernelLoader
	workers []*workerCtx
	current *frame
}

// NewPool returns an uninitialized pool. Workers are created by Init.
func NewPool(load KernelLoader) *Pool {
	return &Pool{load: load}
}

// Init creates workerCount worker contexts and blocks until every kernel
// reports ready. workerCount <= 0 selects runtime.NumCPU, capped at
// maxWorkers. Initialization is all-or-nothing: if any kernel fails to
// load, every created context is torn down and the pool stays
// uninitialized. Calling Init on an initialized pool is a no-op.
func (p *Pool) Init(workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.workers) > 0 {
		return nil
	}
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if workerCount > maxWorkers {
		workerCount = maxWorkers
	}

	ctxs := make([]*workerCtx, workerCount)
	var g errgroup.Group
	for i := 0; i < workerCount; i++ {
		i := i
		g.Go(func() error {
			w, err := newWorkerCtx(i, p.load)
			if err != nil {
				return &InitializationError{Worker: i, Err: err}
			}
			ctxs[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, w := range ctxs {
			if w != nil {
				w.stop()
			}
		}
		return err
	}

	p.workers = ctxs
	return nil
}

// Initialized reports whether the pool has a live worker set.
func (p *Pool) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers) > 0
}

// WorkerCount returns the number of worker contexts, 0 if uninitialized.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Render executes one job to completion. It allocates the shared frame
// memory, dispatches the march phase to every worker (worker i owns the
// rows y with y mod workerCount == i), waits for all of them at the phase
// barrier, dispatches the paint phase to worker 0, and returns a copy of
// the RGBA region.
//
// Cancellation is not an error: a cancelled job resolves normally with
// whatever partial image was painted, and the caller decides whether to
// keep it. A kernel failure on any worker aborts the job with a
// KernelError and the paint phase is never dispatched.
func (p *Pool) Render(job *RenderJob) (*RenderResult, error) {
	p.jobMu.Lock()
	defer p.jobMu.Unlock()

	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()
	if len(workers) == 0 {
		return nil, ErrNotInitialized
	}

	start := time.Now()
	f := newFrame(job.Width, job.Height, len(workers))
	p.mu.Lock()
	p.current = f
	p.mu.Unlock()

	// Phase 1: march. One dispatch per worker, one response per worker.
	done := make(chan response, len(workers))
	for _, w := range workers {
		w.reqs <- request{
			kind:        reqMarch,
			frame:       f,
			job:         job,
			workerCount: len(workers),
			done:        done,
		}
	}

	var kerr error
	for range workers {
		resp := <-done
		if resp.err != nil && kerr == nil {
			kerr = &KernelError{Worker: resp.worker, Err: resp.err}
			// Let the remaining workers bail out of the doomed job early.
			f.requestCancel()
		}
	}
	if kerr != nil {
		return nil, kerr
	}

	// Phase 2: paint, on the designated worker.
	paintDone := make(chan response, 1)
	workers[0].reqs <- request{kind: reqPaint, frame: f, job: job, done: paintDone}
	if resp := <-paintDone; resp.err != nil {
		return nil, &KernelError{Worker: resp.worker, Err: resp.err}
	}

	rgba := make([]byte, len(f.rgba))
	copy(rgba, f.rgba)
	return &RenderResult{
		RGBA:    rgba,
		Width:   job.Width,
		Height:  job.Height,
		Elapsed: time.Since(start),
	}, nil
}

// RenderQuick renders a complete low-resolution image on a single worker,
// bypassing the shared frame memory and both phase barriers. The request
// is routed to the highest-index worker, away from worker 0 which owns
// the paint phase of full renders.
func (p *Pool) RenderQuick(job *RenderJob, width, height int) ([]byte, error) {
	p.quickMu.Lock()
	defer p.quickMu.Unlock()

	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()
	if len(workers) == 0 {
		return nil, ErrNotInitialized
	}

	done := make(chan response, 1)
	workers[len(workers)-1].reqs <- request{
		kind:   reqQuick,
		job:    job,
		quickW: width,
		quickH: height,
		done:   done,
	}
	resp := <-done
	if resp.err != nil {
		return nil, &KernelError{Worker: resp.worker, Err: resp.err}
	}
	return resp.rgba, nil
}

// Progress reports the march-phase completion of the most recent job as a
// fraction in [0, 1]. It is a non-blocking approximate read intended for
// periodic sampling; 0 is reported before the first job.
func (p *Pool) Progress() float64 {
	p.mu.Lock()
	f := p.current
	p.mu.Unlock()
	if f == nil {
		return 0
	}
	return f.fraction()
}

// Cancel flags the in-flight job for cooperative cancellation. It never
// interrupts a kernel call already in progress and has no effect when no
// job is running.
func (p *Pool) Cancel() {
	p.mu.Lock()
	f := p.current
	p.mu.Unlock()
	if f != nil {
		f.requestCancel()
	}
}

// Destroy cancels any in-flight job, terminates every worker context and
// returns the pool to the uninitialized state. It blocks until the
// in-flight job, if any, has resolved. A destroyed pool may be
// re-initialized.
func (p *Pool) Destroy() {
	p.Cancel()

	// Wait out any render still holding a dispatch, so no worker is
	// stopped with a request in flight.
	p.jobMu.Lock()
	defer p.jobMu.Unlock()
	p.quickMu.Lock()
	defer p.quickMu.Unlock()

	p.mu.Lock()
	workers := p.workers
	p.workers = nil
	p.current = nil
	p.mu.Unlock()

	for _, w := range workers {
		w.stop()
	}
}
