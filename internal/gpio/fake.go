package gpio

// FakeIndicator is a test double that records every Set call.
type FakeIndicator struct {
	// On is the current output.
	On bool

	// History contains every value passed to Set, in order.
	History []bool

	// Closed tracks if Close was called.
	Closed bool

	// SetError, if set, will be returned by Set.
	SetError error
}

// NewFakeIndicator creates a FakeIndicator that is off.
func NewFakeIndicator() *FakeIndicator {
	return &FakeIndicator{}
}

// Set records the value.
func (f *FakeIndicator) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.On = on
	f.History = append(f.History, on)
	return nil
}

// Close marks the indicator as closed.
func (f *FakeIndicator) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded state.
func (f *FakeIndicator) Reset() {
	f.On = false
	f.History = nil
	f.Closed = false
	f.SetError = nil
}
