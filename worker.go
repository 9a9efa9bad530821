package marcher

import "fmt"

type reqKind int

const (
	reqMarch reqKind = iota
	reqPaint
	reqQuick
)

// request is a message dispatched to a worker execution context. Every
// field a phase needs is supplied fresh on each dispatch; workers retain
// no job state of their own.
type request struct {
	kind        reqKind
	frame       *frame
	job         *RenderJob
	workerCount int

	// quick path dimensions (reqQuick only)
	quickW int
	quickH int

	done chan<- response
}

// response is the completion report of one request. Exactly one response
// is sent per request, including early exits due to cancellation, so the
// coordinator's barriers always converge.
type response struct {
	worker int
	rows   int
	rgba   []byte
	err    error
}

// workerCtx is a worker execution context: one persistent goroutine
// owning one loaded kernel instance, reused across every job for the life
// of the pool. It is purely reactive; it only ever replies to requests.
type workerCtx struct {
	id     int
	kernel Kernel
	reqs   chan request
	quit   chan struct{}
}

// newWorkerCtx loads a kernel via the loader and starts the context
// goroutine. The loader runs synchronously so the caller observes
// readiness (or a load failure) before the context is handed out.
func newWorkerCtx(id int, load KernelLoader) (*workerCtx, error) {
	k, err := load()
	if err != nil {
		return nil, err
	}
	w := &workerCtx{
		id:     id,
		kernel: k,
		reqs:   make(chan request, 1),
		quit:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *workerCtx) stop() {
	close(w.quit)
}

func (w *workerCtx) loop() {
	for {
		select {
		case <-w.quit:
			return
		case req := <-w.reqs:
			req.done <- w.handle(req)
		}
	}
}

// handle executes one request. Kernel panics are caught here and reported
// as structured errors; a worker context never dies silently mid-job.
func (w *workerCtx) handle(req request) (resp response) {
	resp.worker = w.id
	defer func() {
		if r := recover(); r != nil {
			resp.err = fmt.Errorf("kernel panic: %v", r)
		}
	}()

	switch req.kind {
	case reqMarch:
		resp.rows, resp.err = w.march(req.frame, req.job, req.workerCount)
	case reqPaint:
		resp.err = w.kernel.Paint(
			req.frame.gbuf, req.frame.rgba,
			req.job.Width, req.job.Height,
			req.job.PaintParams,
		)
	case reqQuick:
		resp.rgba, resp.err = w.kernel.Quick(
			req.job.RenderParams, req.job.FormulaIDs, req.job.PaintParams,
			req.quickW, req.quickH,
		)
	}
	return resp
}

// march walks this worker's interleaved scanlines (y, y+N, y+2N, ...),
// checking the shared cancellation flag before each row. On cancellation
// it stops issuing kernel calls but still returns normally with the rows
// completed so far, keeping the phase barrier intact.
func (w *workerCtx) march(f *frame, job *RenderJob, workerCount int) (int, error) {
	rowSize := job.Width * GBufRecordSize
	rows := 0

	for y := w.id; y < job.Height; y += workerCount {
		if f.cancelled() {
			break
		}
		row := f.gbuf[y*rowSize : (y+1)*rowSize]
		if err := w.kernel.MarchRow(job.RenderParams, job.FormulaIDs, row, y, job.Width, w.id); err != nil {
			return rows, err
		}
		rows++
		f.rowDone(w.id)
	}
	return rows, nil
}
