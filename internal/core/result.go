package core

import "github.com/google/uuid"

// Result is the outcome of one capture request. Err is nil on success, in
// which case Location names where the artifact ended up.
type Result struct {
	RequestID string       `json:"request_id"`
	Kind      ArtifactKind `json:"kind"`
	Location  string       `json:"location,omitempty"`
	Err       error        `json:"-"`
}

// OK reports whether the request succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Callback receives the result of a capture request exactly once.
type Callback func(Result)

// Request is an in-flight capture request.
type Request struct {
	ID       string
	Kind     ArtifactKind
	Callback Callback
}

// NewRequest creates a request with a fresh id.
func NewRequest(kind ArtifactKind, cb Callback) *Request {
	return &Request{
		ID:       uuid.New().String(),
		Kind:     kind,
		Callback: cb,
	}
}

// Fail builds a failed result for the request.
func (r *Request) Fail(err error) Result {
	return Result{RequestID: r.ID, Kind: r.Kind, Err: err}
}

// Succeed builds a successful result for the request.
func (r *Request) Succeed(location string) Result {
	return Result{RequestID: r.ID, Kind: r.Kind, Location: location}
}
