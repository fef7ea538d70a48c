package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// State is the recorder lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRecording
)

var (
	// ErrAlreadyRecording is returned when Start is called mid-recording.
	ErrAlreadyRecording = errors.New("recording already in progress")
	// ErrNotRecording is returned when Stop is called while idle.
	ErrNotRecording = errors.New("no recording in progress")
)

// PermissionError wraps a capture-device failure caused by missing microphone
// access. The UI surfaces it immediately and the recorder stays idle.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("microphone access denied: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// Device is a capture source producing an encoded audio stream. Closing the
// stream releases the device.
type Device interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	MIMEType() string
}

// Recording is a finished capture: the encoded bytes plus a local file the UI
// can play back as a preview before sending.
type Recording struct {
	Data        []byte
	MIMEType    string
	PreviewPath string
}

// Recorder drives a Device through idle -> recording -> idle, producing a
// Recording on the transition back to idle. The device stream is released on
// Stop and on Close regardless of state.
type Recorder struct {
	mu     sync.Mutex
	state  State
	device Device

	stream  io.ReadCloser
	buf     *bytes.Buffer
	done    chan struct{}
	copyErr error

	log *logrus.Entry
}

// NewRecorder creates a recorder over the given capture device.
func NewRecorder(device Device) *Recorder {
	return &Recorder{
		device: device,
		log:    logrus.WithField("component", "audio"),
	}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start acquires the capture device and begins buffering audio. Permission
// failures surface as *PermissionError and leave the recorder idle.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateRecording {
		return ErrAlreadyRecording
	}

	stream, err := r.device.Open(ctx)
	if err != nil {
		if isPermissionDenied(err) {
			return &PermissionError{Err: err}
		}
		return fmt.Errorf("opening capture device: %w", err)
	}

	r.stream = stream
	r.buf = &bytes.Buffer{}
	r.done = make(chan struct{})
	r.state = StateRecording
	r.copyErr = nil

	go func(dst *bytes.Buffer, src io.Reader, done chan struct{}) {
		_, err := io.Copy(dst, src)
		r.mu.Lock()
		// A closed stream reads as EOF or a close error; both end the capture.
		if err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
			r.copyErr = err
		}
		r.mu.Unlock()
		close(done)
	}(r.buf, stream, r.done)

	r.log.Debug("recording started")
	return nil
}

// Stop finalizes the capture, releases the device, and returns the Recording
// with its local preview file. A device failure during capture surfaces here
// instead of yielding a truncated recording.
func (r *Recorder) Stop() (*Recording, error) {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	stream := r.stream
	done := r.done
	r.mu.Unlock()

	// Closing the stream releases the device and unblocks the copier.
	stream.Close()
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateIdle
	r.stream = nil

	data := r.buf.Bytes()
	r.buf = nil

	if r.copyErr != nil {
		err := r.copyErr
		r.copyErr = nil
		return nil, fmt.Errorf("capture failed: %w", err)
	}

	preview, err := writePreview(data, r.device.MIMEType())
	if err != nil {
		r.log.WithError(err).Warn("writing preview file failed")
	}

	rec := &Recording{
		Data:        data,
		MIMEType:    r.device.MIMEType(),
		PreviewPath: preview,
	}
	r.log.WithField("bytes", len(data)).Debug("recording stopped")
	return rec, nil
}

// Close releases the capture device whatever state the recorder is in. Safe
// to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	stream := r.stream
	done := r.done
	r.stream = nil
	r.buf = nil
	r.state = StateIdle
	r.mu.Unlock()

	if stream != nil {
		stream.Close()
		if done != nil {
			<-done
		}
	}
	return nil
}

func writePreview(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	f, err := os.CreateTemp("", "lingopal-recording-*"+extensionFor(mimeType))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func extensionFor(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "webm"):
		return ".webm"
	case strings.Contains(mimeType, "ogg"):
		return ".ogg"
	case strings.Contains(mimeType, "wav"):
		return ".wav"
	default:
		return ".mp3"
	}
}

func isPermissionDenied(err error) bool {
	if errors.Is(err, os.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission") || strings.Contains(msg, "access denied")
}
