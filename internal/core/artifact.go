package core

import (
	"fmt"
	"strings"
)

// ArtifactKind identifies which capture provider produces an artifact.
type ArtifactKind string

const (
	KindReport       ArtifactKind = "nodereport"
	KindHeapSnapshot ArtifactKind = "heapdump"
	KindCoreImage    ArtifactKind = "coredump"
)

// ArtifactKinds is the ordered list of all artifact kinds.
var ArtifactKinds = []ArtifactKind{KindReport, KindHeapSnapshot, KindCoreImage}

// String returns the config key / trigger name of the kind.
func (k ArtifactKind) String() string {
	return string(k)
}

// Valid reports whether k is a known kind.
func (k ArtifactKind) Valid() bool {
	switch k {
	case KindReport, KindHeapSnapshot, KindCoreImage:
		return true
	}
	return false
}

// Prefix returns the canonical filename prefix for the kind.
func (k ArtifactKind) Prefix() string {
	switch k {
	case KindReport:
		return "report"
	case KindHeapSnapshot:
		return "heapdump"
	case KindCoreImage:
		return "core"
	default:
		return string(k)
	}
}

// Extension returns the filename extension, including the leading dot.
func (k ArtifactKind) Extension() string {
	switch k {
	case KindReport:
		return ".json"
	case KindHeapSnapshot:
		return ".heapsnapshot"
	case KindCoreImage:
		return ".tar.gz"
	default:
		return ""
	}
}

// ParseArtifactKind parses a kind name. A few aliases are accepted for CLI
// and HTTP convenience.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nodereport", "report":
		return KindReport, nil
	case "heapdump", "heap", "heapsnapshot":
		return KindHeapSnapshot, nil
	case "coredump", "core":
		return KindCoreImage, nil
	}
	return "", ErrValidation(CodeUnknownKind, fmt.Sprintf("unknown artifact kind %q", s))
}
