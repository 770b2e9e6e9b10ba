package serial

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

// ptyPort adapts a pty slave to the Port interface so the full worker path
// can run against a real file descriptor. Deadline expiry is mapped to the
// driver's (0, nil) timeout convention.
type ptyPort struct {
	f       *os.File
	timeout time.Duration
}

func (p *ptyPort) Read(buf []byte) (int, error) {
	if p.timeout > 0 {
		if err := p.f.SetReadDeadline(time.Now().Add(p.timeout)); err != nil {
			return 0, err
		}
	}
	n, err := p.f.Read(buf)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return 0, nil
	}
	return n, err
}

func (p *ptyPort) Close() error                        { return p.f.Close() }
func (p *ptyPort) SetDTR(dtr bool) error               { return nil }
func (p *ptyPort) SetReadTimeout(t time.Duration) error { p.timeout = t; return nil }

func TestLineReaderOverPty(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close() })

	cfg := testConfig()
	cfg.Device = slave.Name()
	r := NewLineReader(cfg, nil)
	r.dial = func() (Port, error) {
		return &ptyPort{f: slave}, nil
	}

	require.NoError(t, r.Open(true))
	require.NoError(t, r.BeginRead(StartTrigger{Mode: TriggerImmediate}))
	t.Cleanup(func() { r.Close() })

	_, err = master.Write([]byte("3.3, 4.4\n1.1, 2.2\n"))
	require.NoError(t, err)

	recs := collect(t, r, 2, 2*time.Second)
	require.NoError(t, recs[0].Err)
	require.Equal(t, "3.3, 4.4", recs[0].Line.Content)
	require.Equal(t, "1.1, 2.2", recs[1].Line.Content)
	require.GreaterOrEqual(t, recs[1].Line.T, recs[0].Line.T)
}
