package marcher

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when a job is submitted to a pool whose
// workers have not been created yet. It signals a programming error in the
// caller, not a transient condition.
var ErrNotInitialized = errors.New("marcher: worker pool is not initialized")

// InitializationError reports that a worker failed to load its compute
// kernel. Pool initialization is all-or-nothing: on this error the pool
// stays uninitialized and Init may be retried.
type InitializationError struct {
	Worker int
	Err    error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("marcher: worker %d failed to initialize: %v", e.Worker, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// KernelError reports that a kernel call raised during a job. The job is
// aborted and its shared buffers discarded, since a failing kernel may
// have left them in a corrupted state. Cancellation never produces a
// KernelError.
type KernelError struct {
	Worker int
	Err    error
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("marcher: kernel failure on worker %d: %v", e.Worker, e.Err)
}

func (e *KernelError) Unwrap() error { return e.Err }
