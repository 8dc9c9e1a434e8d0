package chat

import (
	"bytes"
	"errors"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/spark200410/consultancy/internal/backend"
	"github.com/spark200410/consultancy/internal/metrics"
)

var (
	ErrCaptureTooLarge = errors.New("recording exceeds the size limit")
	ErrCaptureReleased = errors.New("recording already released")
)

// Device hands out captures. It is the server side stand in for the
// browser microphone: chunks recorded by the browser are appended to the
// capture until the recording stops.
type Device interface {
	Open() (*Capture, error)
}

// BufferDevice opens in-memory captures capped at max bytes.
type BufferDevice struct {
	max     int64
	metrics *metrics.Metrics
}

func NewBufferDevice(max int64, m *metrics.Metrics) *BufferDevice {
	if max <= 0 {
		max = 10 << 20
	}
	return &BufferDevice{max: max, metrics: m}
}

func (d *BufferDevice) Open() (*Capture, error) {
	d.metrics.CaptureOpened()
	return newCapture(d.max, d.metrics.CaptureReleased), nil
}

// Capture is one recording in progress. Release must be called exactly
// once on every path; extra calls are no-ops.
type Capture struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int64
	released  bool
	onRelease func()
}

func newCapture(max int64, onRelease func()) *Capture {
	return &Capture{max: max, onRelease: onRelease}
}

func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return 0, ErrCaptureReleased
	}
	if int64(c.buf.Len()+len(p)) > c.max {
		return 0, ErrCaptureTooLarge
	}
	return c.buf.Write(p)
}

// Finish releases the capture and returns what was recorded.
func (c *Capture) Finish() backend.Audio {
	c.mu.Lock()
	data := append([]byte(nil), c.buf.Bytes()...)
	c.mu.Unlock()

	c.Release()
	return audioFrom(data)
}

func (c *Capture) Release() {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.buf.Reset()
	fn := c.onRelease
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (c *Capture) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

func audioFrom(data []byte) backend.Audio {
	audio := backend.Audio{Data: data, Filename: "recording.wav", ContentType: "audio/wav"}
	if len(data) == 0 {
		return audio
	}

	// browsers record webm or ogg even when asked for wav
	mt := mimetype.Detect(data)
	if strings.HasPrefix(mt.String(), "audio/") || mt.Is("video/webm") {
		audio.ContentType = mt.String()
		audio.Filename = "recording" + mt.Extension()
	}
	return audio
}
