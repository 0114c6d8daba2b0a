// Package capture wraps microphone acquisition and chunked PCM
// accumulation into single-recording sessions.
package capture

// DataCallback receives raw PCM as it becomes available from the device.
type DataCallback func(data []byte, frameCount uint32)

// Config describes the capture format. The scoring service expects
// 16 kHz mono, which is the default wired from configuration.
type Config struct {
	SampleRate uint32
	Channels   uint32
}

// DeviceInfo identifies one capture device.
type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

// Context enumerates capture devices and opens capture streams.
type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config Config, callback DataCallback) (Device, error)
	Close()
}

// Device is one open capture stream. Stop and Close must always be
// safe to call, including after a failed Start.
type Device interface {
	Start() error
	Stop()
	Close()
}
