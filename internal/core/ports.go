package core

import (
	"context"
	"io"
)

// =============================================================================
// Capture Provider Ports
// =============================================================================

// CaptureInfo describes why an artifact is being produced.
type CaptureInfo struct {
	RequestID string
	Trigger   string // "api", "signal", "exception", "cli"
	Reason    string // free text, e.g. the panic value
}

// Producer writes one artifact into dir and returns its path.
// Implementations may block; callers run them off the trigger goroutine.
type Producer interface {
	Produce(ctx context.Context, dir string, info CaptureInfo) (string, error)
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(ctx context.Context, dir string, info CaptureInfo) (string, error)

// Produce calls f.
func (f ProducerFunc) Produce(ctx context.Context, dir string, info CaptureInfo) (string, error) {
	return f(ctx, dir, info)
}

// Producers groups the three capture providers.
type Producers struct {
	Report   Producer
	Snapshot Producer
	Core     Producer
}

// For returns the provider for kind, or nil.
func (p Producers) For(kind ArtifactKind) Producer {
	switch kind {
	case KindReport:
		return p.Report
	case KindHeapSnapshot:
		return p.Snapshot
	case KindCoreImage:
		return p.Core
	}
	return nil
}

// =============================================================================
// Object Storage Ports
// =============================================================================

// ObjectStore uploads artifacts to a remote container.
type ObjectStore interface {
	// Upload streams r into container under name, overwriting any
	// existing object.
	Upload(ctx context.Context, container, name string, r io.Reader) error
}

// ObjectStoreFactory builds an ObjectStore from normalized credentials.
type ObjectStoreFactory func(ctx context.Context, creds Credentials) (ObjectStore, error)

// =============================================================================
// Environment Discovery Port
// =============================================================================

// Discoverer looks up bound service credentials in the hosting environment.
type Discoverer interface {
	// ServiceCredentials returns the credentials of the first instance of
	// the service with the given label.
	ServiceCredentials(label string) (map[string]interface{}, bool)
}
