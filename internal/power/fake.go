package power

import "sync"

// FakeSupply is a test double. Writes update the applied limit the way the
// real attribute does. Safe for concurrent use.
type FakeSupply struct {
	mu sync.Mutex

	wired     bool
	wireless  bool
	wiredType string
	applied   int
	writes    []int
	presence  int

	// Errors returned by the corresponding methods when non-nil.
	presenceErr error
	appliedErr  error
	writeErr    error
}

// NewFakeSupply creates a FakeSupply with the given applied limit.
func NewFakeSupply(applied int) *FakeSupply {
	return &FakeSupply{applied: applied}
}

// SetPresence sets the presence flags and wired type.
func (f *FakeSupply) SetPresence(wired, wireless bool, wiredType string) {
	f.mu.Lock()
	f.wired, f.wireless, f.wiredType = wired, wireless, wiredType
	f.mu.Unlock()
}

// SetApplied overrides the applied limit, as if another agent wrote it.
func (f *FakeSupply) SetApplied(mA int) {
	f.mu.Lock()
	f.applied = mA
	f.mu.Unlock()
}

// SetErrors configures injected errors. Pass nil to clear.
func (f *FakeSupply) SetErrors(presence, applied, write error) {
	f.mu.Lock()
	f.presenceErr, f.appliedErr, f.writeErr = presence, applied, write
	f.mu.Unlock()
}

// Writes returns a copy of every value passed to SetLimit.
func (f *FakeSupply) Writes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.writes...)
}

// PresenceReads returns how many times the wired flag was read.
func (f *FakeSupply) PresenceReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.presence
}

func (f *FakeSupply) WiredOnline() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence++
	if f.presenceErr != nil {
		return false, f.presenceErr
	}
	return f.wired, nil
}

func (f *FakeSupply) WirelessOnline() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presenceErr != nil {
		return false, f.presenceErr
	}
	return f.wireless, nil
}

func (f *FakeSupply) WiredType() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wiredType, nil
}

func (f *FakeSupply) AppliedLimit() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appliedErr != nil {
		return 0, f.appliedErr
	}
	return f.applied, nil
}

func (f *FakeSupply) SetLimit(mA int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, mA)
	f.applied = mA
	return nil
}
