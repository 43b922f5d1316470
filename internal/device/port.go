package device

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"

	"glowlight/tools/setup/internal/glowerr"
)

// DefaultBaud is the console speed of the GlowLight firmware.
const DefaultBaud = 115200

// resetPulse is how long each reset line is held.
const resetPulse = 100 * time.Millisecond

// Port is the subset of a serial port used here.
type Port interface {
	io.ReadCloser
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Opener opens a serial port at the given baud rate.
type Opener func(name string, baud int) (Port, error)

// OpenSerial opens a real serial port.
func OpenSerial(name string, baud int) (Port, error) {
	p, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Serial performs the few direct port operations the tool needs.
type Serial struct {
	open  Opener
	sleep func(time.Duration)
	log   zerolog.Logger
}

// NewSerial creates a Serial using the operating system's ports.
func NewSerial(log zerolog.Logger) *Serial {
	return NewSerialWithOpener(OpenSerial, log)
}

// NewSerialWithOpener creates a Serial with a custom opener (for testing).
func NewSerialWithOpener(open Opener, log zerolog.Logger) *Serial {
	return &Serial{
		open:  open,
		sleep: time.Sleep,
		log:   log.With().Str("component", "serial").Logger(),
	}
}

// Reset toggles DTR and RTS to reboot the board into its application.
func (s *Serial) Reset(port string) error {
	p, err := s.open(port, DefaultBaud)
	if err != nil {
		return openError(port, err)
	}
	defer p.Close()

	steps := []func() error{
		func() error { return p.SetDTR(false) },
		func() error { return p.SetRTS(true) },
		func() error { s.sleep(resetPulse); return nil },
		func() error { return p.SetRTS(false) },
		func() error { s.sleep(resetPulse); return nil },
		func() error { return p.SetDTR(true) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("reset %s: %w", port, err)
		}
	}

	s.log.Debug().Str("port", port).Msg("reset pulse sent")
	return nil
}

// TestConnection opens port, drains pending input and closes it again.
func (s *Serial) TestConnection(port string) error {
	p, err := s.open(port, DefaultBaud)
	if err != nil {
		return openError(port, err)
	}
	defer p.Close()

	if err := p.SetReadTimeout(100 * time.Millisecond); err != nil {
		return fmt.Errorf("set timeout: %w", err)
	}
	buf := make([]byte, 256)
	for i := 0; i < 8; i++ {
		n, err := p.Read(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read %s: %w", port, err)
		}
		if n == 0 {
			break
		}
	}
	return nil
}

// Monitor copies everything the board prints to out, and to capture when it is set,
// until ctx is cancelled.
func (s *Serial) Monitor(ctx context.Context, port string, baud int, out, capture io.Writer) error {
	p, err := s.open(port, baud)
	if err != nil {
		return openError(port, err)
	}
	defer p.Close()

	if err := p.SetReadTimeout(200 * time.Millisecond); err != nil {
		return fmt.Errorf("set timeout: %w", err)
	}
	_ = p.ResetInputBuffer()

	w := out
	if capture != nil {
		w = io.MultiWriter(out, capture)
	}

	s.log.Debug().Str("port", port).Int("baud", baud).Msg("monitor started")
	buf := make([]byte, 1024)
	var total int
	for {
		select {
		case <-ctx.Done():
			s.log.Debug().Str("port", port).Int("bytes", total).Msg("monitor stopped")
			return nil
		default:
		}

		n, err := p.Read(buf)
		if n > 0 {
			total += n
			if _, werr := w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write monitor output: %w", werr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", port, err)
		}
	}
}

func openError(port string, err error) error {
	var pe *serial.PortError
	if errors.As(err, &pe) && pe.Code() == serial.PortNotFound {
		return glowerr.New(glowerr.KindDeviceNotFound, fmt.Errorf("open %s: %w", port, err))
	}
	return fmt.Errorf("open serial port %s: %w", port, err)
}
