package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// CommandDevice captures microphone audio by running a system recorder
// (ffmpeg, arecord, sox) that writes encoded audio to stdout. Closing the
// returned stream terminates the process, which releases the microphone.
type CommandDevice struct {
	Command string
	Args    []string
	MIME    string
}

// NewCommandDevice builds a device around the given recorder invocation.
func NewCommandDevice(command string, args []string, mimeType string) *CommandDevice {
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	return &CommandDevice{Command: command, Args: args, MIME: mimeType}
}

// MIMEType returns the MIME type the recorder command emits.
func (d *CommandDevice) MIMEType() string { return d.MIME }

// Open starts the recorder process. Failures to spawn (missing binary, no
// device access) are returned before any audio is buffered.
func (d *CommandDevice) Open(ctx context.Context) (io.ReadCloser, error) {
	if d.Command == "" {
		return nil, fmt.Errorf("no capture command configured")
	}

	cmd := exec.CommandContext(ctx, d.Command, d.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &processStream{cmd: cmd, out: stdout}, nil
}

// processStream reads the recorder's stdout; Close kills the process and
// reaps it so the device is always released.
type processStream struct {
	cmd *exec.Cmd
	out io.ReadCloser
}

func (s *processStream) Read(p []byte) (int, error) {
	return s.out.Read(p)
}

func (s *processStream) Close() error {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.out.Close()
	s.cmd.Wait()
	return nil
}
