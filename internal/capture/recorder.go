package capture

import (
	"encoding/binary"
	"sync"

	"github.com/windfall/fgl_practice/internal/errors"
)

// MimeWAV is the container every finalized artifact is packed into.
const MimeWAV = "audio/wav"

// Artifact is the output of one recording: a WAV blob plus its MIME
// type. It is held in memory only until uploaded or discarded.
type Artifact struct {
	Data     []byte
	MimeType string
}

// Size returns the artifact length in bytes.
func (a Artifact) Size() int { return len(a.Data) }

// Recorder turns one Context into sequential single-recording capture
// sessions. Only one recording may be active at a time; Start reports
// AlreadyRecording with the owning slot if a second one is attempted.
type Recorder struct {
	ctx Context
	cfg Config

	mu      sync.Mutex
	device  Device
	slotID  string
	chunks  [][]byte
	pcmSize int
}

// NewRecorder creates a recorder over the given backend.
func NewRecorder(ctx Context, cfg Config) *Recorder {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	return &Recorder{ctx: ctx, cfg: cfg}
}

// Active returns the slot currently being recorded, if any.
func (r *Recorder) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slotID, r.device != nil
}

// Start acquires the microphone and begins buffering chunks for slotID.
// The slot state is left untouched by callers when this fails.
func (r *Recorder) Start(slotID string) error {
	r.mu.Lock()
	if r.device != nil {
		active := r.slotID
		r.mu.Unlock()
		return errors.AlreadyRecording(active)
	}
	r.chunks = nil
	r.pcmSize = 0
	r.slotID = slotID
	r.mu.Unlock()

	// Chunks are appended as the device delivers them; no chunk is
	// individually meaningful, only the concatenation at Stop time.
	dev, err := r.ctx.NewCapture(nil, r.cfg, r.append)
	if err != nil {
		return errors.DeviceUnavailable(err)
	}

	if err := dev.Start(); err != nil {
		dev.Close()
		return errors.DeviceUnavailable(err)
	}

	r.mu.Lock()
	r.device = dev
	r.mu.Unlock()
	return nil
}

func (r *Recorder) append(data []byte, _ uint32) {
	chunk := make([]byte, len(data))
	copy(chunk, data)

	r.mu.Lock()
	r.chunks = append(r.chunks, chunk)
	r.pcmSize += len(chunk)
	r.mu.Unlock()
}

// Stop finalizes the buffered chunks into one WAV artifact and releases
// the device unconditionally.
func (r *Recorder) Stop() (Artifact, error) {
	r.mu.Lock()
	dev := r.device
	chunks := r.chunks
	size := r.pcmSize
	r.device = nil
	r.slotID = ""
	r.chunks = nil
	r.pcmSize = 0
	r.mu.Unlock()

	if dev != nil {
		dev.Stop()
		dev.Close()
	}

	pcm := make([]byte, 0, size)
	for _, c := range chunks {
		pcm = append(pcm, c...)
	}

	return Artifact{
		Data:     encodeWAV(pcm, r.cfg),
		MimeType: MimeWAV,
	}, nil
}

// Abort releases the device and drops all buffered chunks.
func (r *Recorder) Abort() {
	r.mu.Lock()
	dev := r.device
	r.device = nil
	r.slotID = ""
	r.chunks = nil
	r.pcmSize = 0
	r.mu.Unlock()

	if dev != nil {
		dev.Stop()
		dev.Close()
	}
}

const wavHeaderSize = 44

// encodeWAV wraps raw s16le PCM in a canonical RIFF/WAVE header.
func encodeWAV(pcm []byte, cfg Config) []byte {
	out := make([]byte, wavHeaderSize+len(pcm))

	byteRate := cfg.SampleRate * cfg.Channels * 2
	blockAlign := cfg.Channels * 2

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(cfg.Channels))
	binary.LittleEndian.PutUint32(out[24:28], cfg.SampleRate)
	binary.LittleEndian.PutUint32(out[28:32], byteRate)
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], 16) // bits per sample
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)

	return out
}
