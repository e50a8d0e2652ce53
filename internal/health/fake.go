package health

import (
	"errors"

	"github.com/sweeney/charge-limiter/internal/logic"
)

// FakeReader is a test double that returns scripted statuses.
type FakeReader struct {
	// Samples contains scripted statuses. Each Read consumes the next one;
	// the last is repeated once exhausted.
	Samples []logic.BatteryStatus

	index int

	// Closed tracks if Close was called.
	Closed bool

	// ReadError, if set, will be returned by Read.
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...logic.BatteryStatus) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted status.
func (f *FakeReader) Read() (logic.BatteryStatus, error) {
	if f.ReadError != nil {
		return logic.StatusUnknown, f.ReadError
	}
	if len(f.Samples) == 0 {
		return logic.StatusUnknown, errors.New("no samples configured")
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
