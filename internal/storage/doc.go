// Package storage decides where diagnostic artifacts are persisted.
//
// Resolve picks exactly one tier per process, in strict priority order:
// a mounted volume, Object Storage discovered from the platform, or the
// local disk. The resulting Destination is the only shared mutable state of
// the pipeline; after resolution it changes only through its configurator
// methods (SetClient, SetContainer).
package storage
