// Package core holds the domain types shared by the diagnostics pipeline:
// artifact kinds, storage tiers, results, errors and the collaborator ports.
package core

// Capability tokens recognised in a kind's mode string ("api+signal").
const (
	CapabilityAPI       = "api"
	CapabilitySignal    = "signal"
	CapabilityException = "exception"
)

// Capabilities is the ordered list of recognised capability tokens.
var Capabilities = []string{CapabilityAPI, CapabilitySignal, CapabilityException}

// ValidCapabilities is a map for O(1) token validation.
var ValidCapabilities = map[string]bool{
	CapabilityAPI:       true,
	CapabilitySignal:    true,
	CapabilityException: true,
}

// ObjectStorageService is the service label looked up during environment
// discovery.
const ObjectStorageService = "Object-Storage"

// DefaultMode is the mode applied to every kind when no config is present.
const DefaultMode = "api+signal"

// Trigger sources recorded on each capture.
const (
	TriggerAPI       = "api"
	TriggerSignal    = "signal"
	TriggerException = "exception"
	TriggerCall      = "call"
	TriggerCLI       = "cli"
)
