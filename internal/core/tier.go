package core

// TierKind identifies one of the three mutually exclusive storage tiers.
type TierKind int

const (
	TierLocalDisk TierKind = iota
	TierLocalVolume
	TierObjectStorage
)

func (t TierKind) String() string {
	switch t {
	case TierLocalVolume:
		return "volume"
	case TierObjectStorage:
		return "object-storage"
	default:
		return "local-disk"
	}
}

// Durable reports whether the tier lives outside the local disk, in which
// case the local temporary file is removed once the artifact is stored.
func (t TierKind) Durable() bool {
	return t != TierLocalDisk
}
