package server

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
)

// ioErrConn records the first read or write error on the raw connection
// under a TLS session. Clean ends of stream and local closes are not errors.
// It wraps the raw conn rather than the *tls.Conn so net/http still sees a
// *tls.Conn and fills in Request.TLS.
type ioErrConn struct {
	net.Conn

	mu  sync.Mutex
	err error
}

func (c *ioErrConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.record(err)
	return n, err
}

func (c *ioErrConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	c.record(err)
	return n, err
}

func (c *ioErrConn) record(err error) {
	if err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Err returns the first recorded I/O error, if any.
func (c *ioErrConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// connRecord follows one HTTP connection from ConnContext to StateClosed.
type connRecord struct {
	id string

	// served counts requests that reached the handler
	served atomic.Int64
	// servedAtActive is served when the conn last went active
	servedAtActive int64
	last           http.ConnState
}

type connRecordKey struct{}

func withConnRecord(ctx context.Context, rec *connRecord) context.Context {
	return context.WithValue(ctx, connRecordKey{}, rec)
}

func connRecordFromContext(ctx context.Context) *connRecord {
	rec, _ := ctx.Value(connRecordKey{}).(*connRecord)
	return rec
}

// countServed marks the connection as having delivered a request to next.
func countServed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rec := connRecordFromContext(r.Context()); rec != nil {
			rec.served.Add(1)
		}
		next.ServeHTTP(w, r)
	})
}

// ioError digs the recorded I/O error out of a handed out connection.
func ioError(c net.Conn) error {
	tc, ok := c.(*tls.Conn)
	if !ok {
		return nil
	}
	if raw, ok := tc.NetConn().(*ioErrConn); ok {
		return raw.Err()
	}
	return nil
}
