// Package swift uploads artifacts to OpenStack Swift Object Storage.
package swift

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ncw/swift/v2"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// Default network timeouts for the Swift connection.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultTimeout        = 5 * time.Minute
)

// Client implements core.ObjectStore on top of a Swift connection.
// The connection authenticates lazily on the first request.
type Client struct {
	conn *swift.Connection

	mu      sync.Mutex
	ensured map[string]bool
}

// Option configures a Client.
type Option func(*swift.Connection)

// WithTimeouts overrides the connect and request timeouts.
func WithTimeouts(connect, request time.Duration) Option {
	return func(c *swift.Connection) {
		c.ConnectTimeout = connect
		c.Timeout = request
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *swift.Connection) {
		c.UserAgent = ua
	}
}

// New builds a client from credentials. No network traffic happens here.
func New(creds core.Credentials, opts ...Option) (*Client, error) {
	if creds.AuthURL == "" {
		return nil, errors.New("swift: auth URL required")
	}
	if creds.Username == "" && creds.UserID == "" {
		return nil, errors.New("swift: username or user id required")
	}

	conn := &swift.Connection{
		UserName:       creds.Username,
		UserId:         creds.UserID,
		ApiKey:         creds.Password,
		AuthUrl:        creds.AuthURL,
		AuthVersion:    creds.AuthVersionNumber(),
		Domain:         creds.DomainName,
		DomainId:       creds.DomainID,
		Tenant:         creds.Project,
		TenantId:       creds.TenantID,
		Region:         creds.Region,
		ConnectTimeout: DefaultConnectTimeout,
		Timeout:        DefaultTimeout,
		UserAgent:      "clouddiag/1.0",
	}
	for _, opt := range opts {
		opt(conn)
	}

	return &Client{conn: conn, ensured: make(map[string]bool)}, nil
}

// Factory adapts New to core.ObjectStoreFactory.
func Factory(opts ...Option) core.ObjectStoreFactory {
	return func(_ context.Context, creds core.Credentials) (core.ObjectStore, error) {
		return New(creds, opts...)
	}
}

// Upload streams r into container/name. The container is created on first
// use; the PUT is idempotent so an existing container is left alone.
func (c *Client) Upload(ctx context.Context, container, name string, r io.Reader) error {
	if err := c.ensureContainer(ctx, container); err != nil {
		return err
	}

	_, err := c.conn.ObjectPut(ctx, container, name, r, false, "", contentType(name), nil)
	if err != nil {
		return fmt.Errorf("uploading %s/%s: %w", container, name, classify(err))
	}
	return nil
}

func (c *Client) ensureContainer(ctx context.Context, container string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ensured[container] {
		return nil
	}
	if err := c.conn.ContainerCreate(ctx, container, nil); err != nil {
		return fmt.Errorf("creating container %s: %w", container, classify(err))
	}
	c.ensured[container] = true
	return nil
}

// classify marks Swift errors that may clear up on retry: server errors,
// throttling, request timeouts and network failures.
func classify(err error) error {
	var swErr *swift.Error
	if errors.As(err, &swErr) {
		switch {
		case swErr.StatusCode >= http.StatusInternalServerError,
			swErr.StatusCode == http.StatusRequestTimeout,
			swErr.StatusCode == http.StatusTooManyRequests:
			return core.ErrTransient(err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return core.ErrTransient(err)
	}
	return err
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".json"):
		return "application/json"
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}
