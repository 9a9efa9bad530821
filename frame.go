package marcher

import "sync/atomic"

// frame holds the shared memory regions of one render job: the G-buffer
// written during the march phase, the RGBA buffer written during the paint
// phase, the advisory cancellation flag and one progress counter per
// worker. All regions live exactly as long as the job.
//
// Write partitioning: each G-buffer row is written by exactly one worker
// (row y belongs to worker y mod workerCount), the RGBA buffer only by the
// paint worker, each progress slot only by its owning worker. The
// coordinator reads the buffers only after the respective phase barrier.
type frame struct {
	width  int
	height int
	gbuf   []byte
	rgba   []byte

	cancel   int32
	progress []int32
}

func newFrame(width, height, workers int) *frame {
	return &frame{
		width:    width,
		height:   height,
		gbuf:     make([]byte, width*height*GBufRecordSize),
		rgba:     make([]byte, width*height*RGBAPixelSize),
		progress: make([]int32, workers),
	}
}

// requestCancel flags the job for cooperative cancellation. Workers stop
// before their next row; rows already being marched run to completion.
func (f *frame) requestCancel() {
	atomic.StoreInt32(&f.cancel, 1)
}

func (f *frame) cancelled() bool {
	return atomic.LoadInt32(&f.cancel) == 1
}

// rowDone increments the progress counter owned by the given worker.
func (f *frame) rowDone(worker int) {
	atomic.AddInt32(&f.progress[worker], 1)
}

// fraction reports the completed share of the march phase in [0, 1].
// The per-slot reads are not taken atomically as a set; a skew of one row
// per worker is acceptable for a progress indicator.
func (f *frame) fraction() float64 {
	if f.height == 0 {
		return 1
	}
	var rows int32
	for i := range f.progress {
		rows += atomic.LoadInt32(&f.progress[i])
	}
	frac := float64(rows) / float64(f.height)
	if frac > 1 {
		frac = 1
	}
	return frac
}
