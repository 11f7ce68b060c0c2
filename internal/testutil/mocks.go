package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// MockCall records a call to a mock.
type MockCall struct {
	Method    string
	Args      interface{}
	Timestamp time.Time
}

type callRecorder struct {
	mu    sync.Mutex
	calls []MockCall
}

func (r *callRecorder) recordCall(method string, args interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, MockCall{
		Method:    method,
		Args:      args,
		Timestamp: time.Now(),
	})
}

// Calls returns all recorded calls.
func (r *callRecorder) Calls() []MockCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]MockCall, len(r.calls))
	copy(result, r.calls)
	return result
}

// CallCount returns the number of calls to a method.
func (r *callRecorder) CallCount(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, c := range r.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// =============================================================================
// Object Store
// =============================================================================

// UploadArgs are the arguments of a recorded Upload call.
type UploadArgs struct {
	Container string
	Name      string
}

// MockObjectStore implements core.ObjectStore in memory.
type MockObjectStore struct {
	callRecorder
	mu         sync.Mutex
	objects    map[string][]byte // container/name -> content
	uploadFunc func(ctx context.Context, container, name string, r io.Reader) error
}

// NewMockObjectStore creates an empty mock object store.
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{objects: make(map[string][]byte)}
}

// Upload stores the streamed content, or delegates to the configured func.
func (m *MockObjectStore) Upload(ctx context.Context, container, name string, r io.Reader) error {
	m.recordCall("Upload", UploadArgs{Container: container, Name: name})
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, container, name, r)
	}
	return m.put(container, name, r)
}

func (m *MockObjectStore) put(container, name string, r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[container+"/"+name] = buf.Bytes()
	return nil
}

// WithUploadFunc sets custom upload behavior.
func (m *MockObjectStore) WithUploadFunc(fn func(ctx context.Context, container, name string, r io.Reader) error) *MockObjectStore {
	m.uploadFunc = fn
	return m
}

// WithUploadError makes every upload fail with err after reading part of
// the stream, like a connection dropped mid-transfer.
func (m *MockObjectStore) WithUploadError(err error) *MockObjectStore {
	return m.WithUploadFunc(func(_ context.Context, _, _ string, r io.Reader) error {
		_, _ = io.CopyN(io.Discard, r, 16)
		return err
	})
}

// WithBlockingUpload makes uploads announce themselves on started and then
// hold until release is closed, at which point the content is stored. An
// upload whose context ends first fails with the context's error.
func (m *MockObjectStore) WithBlockingUpload(started chan<- struct{}, release <-chan struct{}) *MockObjectStore {
	return m.WithUploadFunc(func(ctx context.Context, container, name string, r io.Reader) error {
		started <- struct{}{}
		select {
		case <-release:
			return m.put(container, name, r)
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// WithTransientFailures makes the first n uploads fail with a retryable
// error. Later uploads succeed.
func (m *MockObjectStore) WithTransientFailures(n int) *MockObjectStore {
	var mu sync.Mutex
	remaining := n
	return m.WithUploadFunc(func(_ context.Context, container, name string, r io.Reader) error {
		mu.Lock()
		fail := remaining > 0
		if fail {
			remaining--
		}
		mu.Unlock()
		if fail {
			_, _ = io.CopyN(io.Discard, r, 16)
			return core.ErrTransient(errors.New("503 service unavailable"))
		}
		return m.put(container, name, r)
	})
}

// Object returns a stored object's content.
func (m *MockObjectStore) Object(container, name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[container+"/"+name]
	return data, ok
}

// ObjectCount returns the number of stored objects.
func (m *MockObjectStore) ObjectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Factory returns an ObjectStoreFactory that always hands out m and records
// the credentials it was given.
func (m *MockObjectStore) Factory() core.ObjectStoreFactory {
	return func(_ context.Context, creds core.Credentials) (core.ObjectStore, error) {
		m.recordCall("Factory", creds)
		return m, nil
	}
}

// =============================================================================
// Discoverer
// =============================================================================

// MockDiscoverer implements core.Discoverer from a fixed map.
type MockDiscoverer struct {
	callRecorder
	services map[string]map[string]interface{}
}

// NewMockDiscoverer creates a discoverer with no bound services.
func NewMockDiscoverer() *MockDiscoverer {
	return &MockDiscoverer{services: make(map[string]map[string]interface{})}
}

// WithService binds credentials under a service label.
func (m *MockDiscoverer) WithService(label string, creds map[string]interface{}) *MockDiscoverer {
	m.services[label] = creds
	return m
}

// ServiceCredentials implements core.Discoverer.
func (m *MockDiscoverer) ServiceCredentials(label string) (map[string]interface{}, bool) {
	m.recordCall("ServiceCredentials", label)
	creds, ok := m.services[label]
	return creds, ok
}

// ObjectStorageCredentials returns a realistic credentials map.
func ObjectStorageCredentials() map[string]interface{} {
	return map[string]interface{}{
		"auth_url":   "https://identity.example.com",
		"project":    "object_storage_test",
		"projectId":  "project-123",
		"region":     "dallas",
		"userId":     "user-123",
		"username":   "admin_test",
		"password":   "not-a-real-password",
		"domainId":   "domain-123",
		"domainName": "12345",
		"role":       "admin",
	}
}

// =============================================================================
// Producer
// =============================================================================

// MockProducer implements core.Producer by writing a small file.
type MockProducer struct {
	callRecorder
	mu       sync.Mutex
	kind     core.ArtifactKind
	namer    *core.Namer
	content  []byte
	err      error
	produced []string
}

// NewMockProducer creates a producer that writes a file named after kind.
func NewMockProducer(kind core.ArtifactKind) *MockProducer {
	return &MockProducer{
		kind:    kind,
		namer:   core.NewNamer(),
		content: []byte(fmt.Sprintf("mock %s artifact\n", kind)),
	}
}

// WithError makes Produce fail.
func (m *MockProducer) WithError(err error) *MockProducer {
	m.err = err
	return m
}

// WithContent sets the artifact content.
func (m *MockProducer) WithContent(content []byte) *MockProducer {
	m.content = content
	return m
}

// Produce implements core.Producer.
func (m *MockProducer) Produce(_ context.Context, dir string, info core.CaptureInfo) (string, error) {
	m.recordCall("Produce", info)
	if m.err != nil {
		return "", m.err
	}
	path := filepath.Join(dir, m.namer.Next(m.kind))
	if err := os.WriteFile(path, m.content, 0o600); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.produced = append(m.produced, path)
	m.mu.Unlock()
	return path, nil
}

// Produced returns the paths of all produced artifacts.
func (m *MockProducer) Produced() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.produced...)
}

// MockProducers returns one mock producer per kind.
func MockProducers() (core.Producers, *MockProducer, *MockProducer, *MockProducer) {
	report := NewMockProducer(core.KindReport)
	snapshot := NewMockProducer(core.KindHeapSnapshot)
	coreImg := NewMockProducer(core.KindCoreImage)
	return core.Producers{Report: report, Snapshot: snapshot, Core: coreImg}, report, snapshot, coreImg
}
