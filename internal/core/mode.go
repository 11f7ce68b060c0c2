package core

import (
	"fmt"
	"strings"
)

// Mode is a '+'-joined set of capability tokens, e.g. "api+signal".
type Mode string

// Tokens returns the mode's tokens, lowercased, without blanks.
func (m Mode) Tokens() []string {
	parts := strings.Split(string(m), "+")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// Has reports whether the mode enables capability.
func (m Mode) Has(capability string) bool {
	for _, tok := range m.Tokens() {
		if tok == capability {
			return true
		}
	}
	return false
}

// Validate rejects unknown tokens. An empty mode disables the kind and is
// valid.
func (m Mode) Validate() error {
	for _, tok := range m.Tokens() {
		if !ValidCapabilities[tok] {
			return fmt.Errorf("unknown capability %q (valid: %s)", tok, strings.Join(Capabilities, ", "))
		}
	}
	return nil
}

// Modes maps each artifact kind to its mode.
type Modes map[ArtifactKind]Mode

// DefaultModes enables api and signal for every kind.
func DefaultModes() Modes {
	return Modes{
		KindReport:       DefaultMode,
		KindHeapSnapshot: DefaultMode,
		KindCoreImage:    DefaultMode,
	}
}

// Enabled reports whether kind's mode contains capability.
func (m Modes) Enabled(kind ArtifactKind, capability string) bool {
	return m[kind].Has(capability)
}
