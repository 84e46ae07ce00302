// Package testserver spins up a full HTTP adapter over a fresh in-memory
// kernel for adapter-level tests.
package testserver

import (
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klockd/klock/internal/domain/activity"
	"github.com/klockd/klock/internal/domain/kernel"
	"github.com/klockd/klock/internal/memstore"
	"github.com/klockd/klock/internal/transport"
)

// Clock is a manually advanced test clock shared with the kernel.
type Clock struct {
	ms atomic.Int64
}

// Now returns the current fake instant.
func (c *Clock) Now() time.Time {
	return time.UnixMilli(c.ms.Load())
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.ms.Add(d.Milliseconds())
}

// TestServer bundles the HTTP server and the kernel behind it.
type TestServer struct {
	Server *httptest.Server
	Kernel *kernel.Service
	Clock  *Clock
}

// New starts a test server over an empty store. No auth middleware; the
// adapter's auth path has its own tests.
func New(t *testing.T) *TestServer {
	t.Helper()

	clock := &Clock{}
	clock.ms.Store(time.Now().UnixMilli())

	events := memstore.NewEventLog()
	svc := kernel.NewService(
		memstore.NewLeaseStore(),
		memstore.NewAgentDirectory(),
		nil,
		kernel.WithClock(clock.Now),
		kernel.WithEventLog(events),
	)

	server := httptest.NewServer(transport.NewServer(svc, activity.NewService(events, nil), nil))
	t.Cleanup(server.Close)

	return &TestServer{Server: server, Kernel: svc, Clock: clock}
}
