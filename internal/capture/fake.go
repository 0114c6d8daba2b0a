package capture

import (
	"errors"
	"sync"
)

// FakeContext is an in-memory capture backend for tests. Each opened
// device feeds the configured PCM to the callback in fixed-size chunks
// when started.
type FakeContext struct {
	pcm       []byte
	chunkSize int
	openErr   error
	startErr  error

	mu     sync.Mutex
	opened []*FakeDevice
}

// NewFakeContext creates a fake backend that emits pcm on every capture.
func NewFakeContext(pcm []byte, chunkSize int) *FakeContext {
	if chunkSize <= 0 {
		chunkSize = 1024
	}
	return &FakeContext{pcm: pcm, chunkSize: chunkSize}
}

// FailOpen makes subsequent NewCapture calls fail, simulating a missing
// or permission-denied device.
func (f *FakeContext) FailOpen(err error) {
	if err == nil {
		err = errors.New("no capture device")
	}
	f.openErr = err
}

// FailStart makes Device.Start fail after a successful open.
func (f *FakeContext) FailStart(err error) { f.startErr = err }

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake capture"}}, nil
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ Config, callback DataCallback) (Device, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	d := &FakeDevice{pcm: f.pcm, chunkSize: f.chunkSize, cb: callback, startErr: f.startErr}
	f.mu.Lock()
	f.opened = append(f.opened, d)
	f.mu.Unlock()
	return d, nil
}

func (f *FakeContext) Close() {}

// OpenCount returns how many devices were opened.
func (f *FakeContext) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

// AllReleased reports whether every opened device was closed again.
func (f *FakeContext) AllReleased() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.opened {
		if !d.Closed() {
			return false
		}
	}
	return true
}

// FakeDevice feeds its PCM synchronously on Start.
type FakeDevice struct {
	pcm       []byte
	chunkSize int
	cb        DataCallback
	startErr  error

	mu      sync.Mutex
	started bool
	closed  bool
}

func (d *FakeDevice) Start() error {
	if d.startErr != nil {
		return d.startErr
	}
	d.mu.Lock()
	d.started = true
	d.mu.Unlock()

	for off := 0; off < len(d.pcm); off += d.chunkSize {
		end := off + d.chunkSize
		if end > len(d.pcm) {
			end = len(d.pcm)
		}
		chunk := d.pcm[off:end]
		d.cb(chunk, uint32(len(chunk)/2))
	}
	return nil
}

func (d *FakeDevice) Stop() {}

func (d *FakeDevice) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}

// Closed reports whether the device was released.
func (d *FakeDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
