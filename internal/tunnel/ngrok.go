package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	ngroklib "golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"

	"github.com/btouchard/recents/internal/config"
)

// ErrNotStarted is returned by Serve before Start succeeded.
var ErrNotStarted = errors.New("tunnel not started")

// NgrokTunnel implements Tunnel using ngrok.
type NgrokTunnel struct {
	authToken string
	domain    string

	mu       sync.Mutex
	listener net.Listener
	url      string
}

// NewNgrok creates an ngrok tunnel from the tunnel configuration.
func NewNgrok(cfg config.TunnelConfig) *NgrokTunnel {
	return &NgrokTunnel{
		authToken: cfg.AuthToken,
		domain:    cfg.Domain,
	}
}

// Start opens the ngrok endpoint and returns its public URL.
func (n *NgrokTunnel) Start(ctx context.Context) (string, error) {
	if n.authToken == "" {
		return "", fmt.Errorf("ngrok auth token is required (set tunnel.authtoken in config or RECENTS_NGROK_AUTHTOKEN env var)")
	}

	slog.Info("starting ngrok tunnel", "domain", n.domain)

	var opts []ngrokconfig.HTTPEndpointOption
	if n.domain != "" {
		// Fixed domain (paid plans)
		opts = append(opts, ngrokconfig.WithDomain(n.domain))
	}

	listener, err := ngroklib.Listen(
		ctx,
		ngrokconfig.HTTPEndpoint(opts...),
		ngroklib.WithAuthtoken(n.authToken),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create ngrok tunnel: %w", err)
	}

	url := publicURL(listener.Addr().String())

	n.mu.Lock()
	n.listener = listener
	n.url = url
	n.mu.Unlock()

	slog.Info("ngrok tunnel established", "public_url", url)
	return url, nil
}

// Serve serves h on the tunnel until ctx is cancelled.
func (n *NgrokTunnel) Serve(ctx context.Context, h http.Handler) error {
	l := n.Listener()
	if l == nil {
		return ErrNotStarted
	}

	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("serving tunnel: %w", err)
	}
	return nil
}

// Close closes the ngrok tunnel.
func (n *NgrokTunnel) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listener == nil {
		return nil
	}

	slog.Info("closing ngrok tunnel", "public_url", n.url)

	if err := n.listener.Close(); err != nil {
		return fmt.Errorf("failed to close ngrok tunnel: %w", err)
	}

	n.listener = nil
	n.url = ""
	return nil
}

// PublicURL returns the public URL of the tunnel.
func (n *NgrokTunnel) PublicURL() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.url
}

// Listener returns the underlying net.Listener.
func (n *NgrokTunnel) Listener() net.Listener {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listener
}

// publicURL ensures the listener address carries a scheme.
func publicURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "https://" + addr
}
