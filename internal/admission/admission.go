package admission

import (
	"context"
	"crypto/subtle"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"waregate/pkg/interfaces"
	"waregate/pkg/types"
)

// Control runs both admission checks, once, synchronously, before the
// WebSocket upgrade. A failed check terminates the connection attempt; the
// server never retries on the client's behalf.
type Control struct {
	token   string
	counter interfaces.AdmissionCounter
	limit   int
	window  time.Duration
}

// NewControl builds admission control over the shared counter store. The
// limiter is fixed-window: bursts at window boundaries may briefly admit up
// to twice the nominal rate, a deliberate simplicity/cost tradeoff that must
// not be "fixed" by serializing connection attempts globally.
func NewControl(token string, counter interfaces.AdmissionCounter, requests int, window time.Duration) *Control {
	return &Control{
		token:   token,
		counter: counter,
		limit:   requests,
		window:  window,
	}
}

// Authenticate extracts the bearer token from the handshake request and
// returns the principal on success. Token absent or mismatched fails with
// ErrUnauthenticated. There is no refresh and no session upgrade; this is
// the only check a connection ever gets.
func (c *Control) Authenticate(r *http.Request) (types.Principal, error) {
	token := bearerToken(r)
	if token == "" {
		log.Printf("Authentication failed: no token provided addr=%s", r.RemoteAddr)
		return types.Principal{}, interfaces.ErrUnauthenticated
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(c.token)) != 1 {
		log.Printf("Authentication failed: invalid token addr=%s", r.RemoteAddr)
		return types.Principal{}, interfaces.ErrUnauthenticated
	}

	principal := types.Principal{
		ID:   r.URL.Query().Get("client_id"),
		Role: r.URL.Query().Get("role"),
	}
	if principal.ID == "" {
		principal.ID = uuid.New().String()
	}
	if principal.Role != types.RoleAdmin {
		principal.Role = types.RoleWorker
	}
	return principal, nil
}

// Allow runs the fixed-window rate check for a client address. The counter
// is shared across gateway instances; the window is armed only by the
// increment that creates the key.
func (c *Control) Allow(ctx context.Context, remoteAddr string) error {
	address := clientAddress(remoteAddr)
	count, err := c.counter.IncrWithWindow(ctx, address, c.window)
	if err != nil {
		// Counter store unreachable: refuse rather than silently waive the
		// limit for every caller.
		log.Printf("Rate limit check failed addr=%s: %v", address, err)
		return interfaces.ErrRateLimited
	}
	if count > int64(c.limit) {
		log.Printf("Rate limit exceeded addr=%s count=%d limit=%d", address, count, c.limit)
		return interfaces.ErrRateLimited
	}
	return nil
}

// bearerToken looks in the Authorization header first, then the token query
// parameter for browser clients that cannot set headers on WebSocket
// handshakes.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimPrefix(auth, "Bearer ")
		}
		return auth
	}
	return r.URL.Query().Get("token")
}

// clientAddress strips the port so all connections from one host share a
// counter.
func clientAddress(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
