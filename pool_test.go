package marcher

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// mockKernel is an instrumented Kernel shared by every worker of a test
// pool, so call counts aggregate across the whole job.
type mockKernel struct {
	mu        sync.Mutex
	rowsByWkr map[int][]int

	marchRows     int32
	paintCalls    int32
	quickCalls    int32
	rowsAtPaint   int32
	marchDelay    time.Duration
	delayedWorker int

	// marchErr, when set, fails MarchRow for errWorker.
	marchErr  error
	errWorker int

	// onRowMarched observes the running total of marched rows.
	onRowMarched func(total int32)
}

func newMockKernel() *mockKernel {
	return &mockKernel{rowsByWkr: map[int][]int{}, delayedWorker: -1, errWorker: -1}
}

func (m *mockKernel) loader() KernelLoader {
	return func() (Kernel, error) { return m, nil }
}

func (m *mockKernel) MarchRow(render []float64, ids []uint32, row []byte, y, width, workerIndex int) error {
	if m.marchDelay > 0 && workerIndex == m.delayedWorker {
		time.Sleep(m.marchDelay)
	}
	if m.marchErr != nil && workerIndex == m.errWorker {
		return m.marchErr
	}
	for x := 0; x < width; x++ {
		row[x*GBufRecordSize] = byte(workerIndex)
	}
	m.mu.Lock()
	m.rowsByWkr[workerIndex] = append(m.rowsByWkr[workerIndex], y)
	m.mu.Unlock()

	total := atomic.AddInt32(&m.marchRows, 1)
	if m.onRowMarched != nil {
		m.onRowMarched(total)
	}
	return nil
}

func (m *mockKernel) Paint(gbuf, rgba []byte, width, height int, paint []float64) error {
	atomic.AddInt32(&m.paintCalls, 1)
	atomic.StoreInt32(&m.rowsAtPaint, atomic.LoadInt32(&m.marchRows))
	for i := range rgba {
		rgba[i] = 0xaa
	}
	return nil
}

func (m *mockKernel) Quick(render []float64, ids []uint32, paint []float64, width, height int) ([]byte, error) {
	atomic.AddInt32(&m.quickCalls, 1)
	return make([]byte, width*height*RGBAPixelSize), nil
}

func testJob(w, h int) *RenderJob {
	p := DefaultParams()
	p.Width, p.Height = w, h
	return NewRenderJob(p)
}

func TestPool_RenderNotInitialized(t *testing.T) {
	assert := assert.New(t)

	p := NewPool(newMockKernel().loader())
	_, err := p.Render(testJob(8, 8))
	assert.ErrorIs(err, ErrNotInitialized)

	_, err = p.RenderQuick(testJob(8, 8), 8, 8)
	assert.ErrorIs(err, ErrNotInitialized)
}

func TestPool_RowOwnershipPartition(t *testing.T) {
	assert := assert.New(t)

	const w, h, workers = 64, 32, 4

	mock := newMockKernel()
	p := NewPool(mock.loader())
	assert.NoError(p.Init(workers))
	defer p.Destroy()

	res, err := p.Render(testJob(w, h))
	assert.NoError(err)
	assert.Len(res.RGBA, w*h*RGBAPixelSize)

	// Every row marched exactly once, by its owning worker.
	seen := make(map[int]int)
	mock.mu.Lock()
	for wkr, rows := range mock.rowsByWkr {
		for _, y := range rows {
			seen[y]++
			assert.Equal(y%workers, wkr, "row %d marched by worker %d", y, wkr)
		}
	}
	mock.mu.Unlock()
	assert.Len(seen, h)
	for y := 0; y < h; y++ {
		assert.Equal(1, seen[y], "row %d march count", y)
	}

	// The G-buffer carries the writing worker's index in every pixel's
	// first byte.
	f := p.current
	rowSize := w * GBufRecordSize
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			assert.EqualValues(y%workers, f.gbuf[y*rowSize+x*GBufRecordSize],
				"pixel (%d,%d)", x, y)
		}
	}
}

func TestPool_BarrierWaitsForSlowestWorker(t *testing.T) {
	assert := assert.New(t)

	const w, h, workers = 16, 16, 4

	mock := newMockKernel()
	mock.marchDelay = 10 * time.Millisecond
	mock.delayedWorker = 1

	p := NewPool(mock.loader())
	assert.NoError(p.Init(workers))
	defer p.Destroy()

	_, err := p.Render(testJob(w, h))
	assert.NoError(err)

	// Paint observed every row already marched: phase 2 is a full
	// barrier, not a fastest-worker race.
	assert.EqualValues(h, atomic.LoadInt32(&mock.rowsAtPaint))
	assert.EqualValues(1, atomic.LoadInt32(&mock.paintCalls))
}

func TestPool_CancelBeforeAnyProgress(t *testing.T) {
	assert := assert.New(t)

	mock := newMockKernel()
	p := NewPool(mock.loader())
	assert.NoError(p.Init(2))
	defer p.Destroy()

	// A pre-cancelled frame marches zero rows but still reports
	// completion, keeping the barrier intact.
	f := newFrame(8, 8, 2)
	f.requestCancel()
	rows, err := p.workers[0].march(f, testJob(8, 8), 2)
	assert.NoError(err)
	assert.Zero(rows)
	assert.Zero(f.fraction())

	// And a cancelled job still resolves with a full-size RGBA buffer.
	mock.onRowMarched = func(total int32) {
		if total == 1 {
			p.Cancel()
		}
	}
	res, err := p.Render(testJob(8, 8))
	assert.NoError(err)
	assert.Len(res.RGBA, 8*8*RGBAPixelSize)
}

func TestPool_CancelMidway(t *testing.T) {
	assert := assert.New(t)

	const w, h, workers = 8, 32, 4

	mock := newMockKernel()
	p := NewPool(mock.loader())
	assert.NoError(p.Init(workers))
	defer p.Destroy()

	mock.onRowMarched = func(total int32) {
		if total == 10 {
			assert.NotPanics(p.Cancel)
		}
	}

	res, err := p.Render(testJob(w, h))
	assert.NoError(err)
	assert.Len(res.RGBA, w*h*RGBAPixelSize)
	assert.LessOrEqual(p.Progress(), 1.0)
}

func TestPool_ProgressMonotonic(t *testing.T) {
	assert := assert.New(t)

	const w, h, workers = 8, 24, 3

	mock := newMockKernel()
	mock.marchDelay = time.Millisecond
	mock.delayedWorker = 0

	p := NewPool(mock.loader())
	assert.NoError(p.Init(workers))
	defer p.Destroy()

	stop := make(chan struct{})
	var samples []float64
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				samples = append(samples, p.Progress())
				time.Sleep(time.Millisecond)
			}
		}
	}()

	_, err := p.Render(testJob(w, h))
	close(stop)
	wg.Wait()

	assert.NoError(err)
	last := 0.0
	for i, s := range samples {
		assert.GreaterOrEqual(s, last, "sample %d", i)
		assert.LessOrEqual(s, 1.0, "sample %d", i)
		last = s
	}
	assert.Equal(1.0, p.Progress())
}

func TestPool_KernelErrorAbortsJob(t *testing.T) {
	assert := assert.New(t)

	mock := newMockKernel()
	mock.marchErr = errors.New("distance estimator diverged")
	mock.errWorker = 2

	p := NewPool(mock.loader())
	assert.NoError(p.Init(4))
	defer p.Destroy()

	_, err := p.Render(testJob(16, 16))

	var kerr *KernelError
	assert.ErrorAs(err, &kerr)
	assert.Equal(2, kerr.Worker)

	// The paint phase is never dispatched after a march failure.
	assert.Zero(atomic.LoadInt32(&mock.paintCalls))
}

func TestPool_QuickBypassesSharedMemory(t *testing.T) {
	assert := assert.New(t)

	mock := newMockKernel()
	p := NewPool(mock.loader())
	assert.NoError(p.Init(4))
	defer p.Destroy()

	rgba, err := p.RenderQuick(testJob(20, 10), 20, 10)
	assert.NoError(err)
	assert.Len(rgba, 20*10*RGBAPixelSize)

	assert.EqualValues(1, atomic.LoadInt32(&mock.quickCalls))
	assert.Zero(atomic.LoadInt32(&mock.marchRows))
	assert.Zero(atomic.LoadInt32(&mock.paintCalls))

	// No shared frame was ever allocated for the quick path.
	assert.Nil(p.current)
	assert.Zero(p.Progress())
}

func TestPool_InitIdempotentAndConcurrent(t *testing.T) {
	assert := assert.New(t)

	var loads int32
	mock := newMockKernel()
	load := func() (Kernel, error) {
		atomic.AddInt32(&loads, 1)
		return mock, nil
	}

	p := NewPool(load)
	defer p.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(p.Init(4))
		}()
	}
	wg.Wait()

	// Exactly one worker set was created.
	assert.EqualValues(4, atomic.LoadInt32(&loads))
	assert.Equal(4, p.WorkerCount())

	// A later Init with a different count stays a no-op.
	assert.NoError(p.Init(8))
	assert.Equal(4, p.WorkerCount())
}

func TestPool_InitFailureLeavesPoolUninitialized(t *testing.T) {
	assert := assert.New(t)

	var failOnce int32 = 1
	mock := newMockKernel()
	load := func() (Kernel, error) {
		if atomic.CompareAndSwapInt32(&failOnce, 1, 0) {
			return nil, errors.New("kernel blob missing")
		}
		return mock, nil
	}

	p := NewPool(load)
	err := p.Init(4)

	var ierr *InitializationError
	assert.ErrorAs(err, &ierr)
	assert.False(p.Initialized())

	// Initialization may be retried after a failure.
	assert.NoError(p.Init(4))
	assert.True(p.Initialized())
	p.Destroy()
}

func TestPool_DestroyReleasesWorkers(t *testing.T) {
	assert := assert.New(t)

	mock := newMockKernel()
	p := NewPool(mock.loader())
	assert.NoError(p.Init(2))

	p.Destroy()
	assert.False(p.Initialized())

	_, err := p.Render(testJob(4, 4))
	assert.ErrorIs(err, ErrNotInitialized)

	// A destroyed pool can be brought back up.
	assert.NoError(p.Init(2))
	res, err := p.Render(testJob(4, 4))
	assert.NoError(err)
	assert.Len(res.RGBA, 4*4*RGBAPixelSize)
	p.Destroy()
}

func TestPool_WorkerCountCapped(t *testing.T) {
	assert := assert.New(t)

	mock := newMockKernel()
	p := NewPool(mock.loader())
	assert.NoError(p.Init(64))
	defer p.Destroy()

	assert.Equal(maxWorkers, p.WorkerCount())
}

func TestPool_KernelPanicReportedAsError(t *testing.T) {
	assert := assert.New(t)

	load := func() (Kernel, error) { return panicKernel{}, nil }
	p := NewPool(load)
	assert.NoError(p.Init(2))
	defer p.Destroy()

	_, err := p.Render(testJob(4, 4))
	var kerr *KernelError
	assert.ErrorAs(err, &kerr)
	assert.Contains(kerr.Error(), "kernel panic")
}

type panicKernel struct{}

func (panicKernel) MarchRow([]float64, []uint32, []byte, int, int, int) error {
	panic("index out of range in formula dispatch")
}

func (panicKernel) Paint([]byte, []byte, int, int, []float64) error { return nil }

func (panicKernel) Quick([]float64, []uint32, []float64, int, int) ([]byte, error) {
	return nil, nil
}
