package power

import "context"

// FakeExecutor records shutdown and restart requests.
type FakeExecutor struct {
	Shutdowns int
	Restarts  int

	// Err, if set, is returned by both methods.
	Err error
}

// NewFakeExecutor creates a FakeExecutor.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{}
}

// Shutdown records a shutdown request.
func (f *FakeExecutor) Shutdown(ctx context.Context) error {
	f.Shutdowns++
	return f.Err
}

// Restart records a restart request.
func (f *FakeExecutor) Restart(ctx context.Context) error {
	f.Restarts++
	return f.Err
}
