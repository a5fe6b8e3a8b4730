// Package tunnel exposes the local router on a public URL.
package tunnel

import (
	"context"
	"net"
	"net/http"
)

// Tunnel exposes a local handler via a public HTTPS URL.
type Tunnel interface {
	Start(ctx context.Context) (publicURL string, err error)
	Serve(ctx context.Context, h http.Handler) error
	Close() error
	PublicURL() string
	Listener() net.Listener
}
