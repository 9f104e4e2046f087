package server

import (
	"crypto/tls"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

type failingConn struct {
	net.Conn
	readErr  error
	writeErr error
}

func (c *failingConn) Read([]byte) (int, error)  { return 0, c.readErr }
func (c *failingConn) Write([]byte) (int, error) { return 0, c.writeErr }

func TestIOErrConn_recordsFirstError(t *testing.T) {
	tests := []struct {
		name     string
		readErr  error
		writeErr error
		want     error
	}{
		{name: "clean end of stream", readErr: io.EOF},
		{name: "local close", readErr: net.ErrClosed, writeErr: net.ErrClosed},
		{name: "deadline", readErr: os.ErrDeadlineExceeded},
		{name: "peer reset", readErr: syscall.ECONNRESET, writeErr: syscall.EPIPE, want: syscall.ECONNRESET},
		{name: "broken pipe", readErr: io.EOF, writeErr: syscall.EPIPE, want: syscall.EPIPE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &ioErrConn{Conn: &failingConn{readErr: tt.readErr, writeErr: tt.writeErr}}

			_, err := c.Read(make([]byte, 1))
			require.True(t, errors.Is(err, tt.readErr))
			_, _ = c.Write([]byte("x"))

			if tt.want == nil {
				require.NoError(t, c.Err())
				return
			}
			require.ErrorIs(t, c.Err(), tt.want)
		})
	}
}

func TestIOError(t *testing.T) {
	raw := &ioErrConn{Conn: &failingConn{readErr: syscall.ECONNRESET}}
	_, _ = raw.Read(make([]byte, 1))

	require.ErrorIs(t, ioError(tls.Server(raw, &tls.Config{})), syscall.ECONNRESET)
	require.NoError(t, ioError(tls.Server(&failingConn{}, &tls.Config{})))
	require.NoError(t, ioError(&failingConn{}))
}
