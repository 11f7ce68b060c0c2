package storage

import (
	"sync"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// Destination is the resolved storage tier plus the Object Storage client
// and container that may be replaced at runtime.
type Destination struct {
	mu        sync.RWMutex
	tier      core.TierKind
	volume    string
	client    core.ObjectStore
	container string
}

// State is a consistent copy of a Destination's fields.
type State struct {
	Tier      core.TierKind
	Volume    string
	Client    core.ObjectStore
	Container string
}

// NewLocalDisk returns a destination that leaves artifacts where they are
// produced.
func NewLocalDisk(container string) *Destination {
	return &Destination{tier: core.TierLocalDisk, container: container}
}

// NewVolume returns a destination backed by a mounted directory.
func NewVolume(path, container string) *Destination {
	return &Destination{tier: core.TierLocalVolume, volume: path, container: container}
}

// NewObjectStorage returns a destination backed by an object store.
func NewObjectStorage(client core.ObjectStore, container string) *Destination {
	return &Destination{tier: core.TierObjectStorage, client: client, container: container}
}

// Tier returns the resolved tier. It never changes after resolution.
func (d *Destination) Tier() core.TierKind {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tier
}

// Snapshot returns the current state.
func (d *Destination) Snapshot() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return State{
		Tier:      d.tier,
		Volume:    d.volume,
		Client:    d.client,
		Container: d.container,
	}
}

// SetClient replaces the Object Storage client. The tier is not
// re-resolved: if the tier is not Object Storage the new client is only
// observable through Connected.
func (d *Destination) SetClient(client core.ObjectStore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.client = client
}

// SetContainer replaces the container used by subsequent uploads.
func (d *Destination) SetContainer(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.container = name
}

// Container returns the container used for uploads.
func (d *Destination) Container() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.container
}

// Connected reports whether an Object Storage client exists. It says
// nothing about reachability.
func (d *Destination) Connected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.client != nil
}
