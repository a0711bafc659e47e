package machine

import (
	"strings"
	"time"
)

// Type classifies a machine on the plant floor.
type Type string

// Known machine types.
const (
	TypeMilling Type = "milling"
	TypeLathe   Type = "lathe"
	TypeSaw     Type = "saw"
	TypeUnknown Type = "unknown"
)

// defaultLocation is assumed for machines that are not in the registry.
const defaultLocation = "workshop_A"

// Machine describes one registered machine.
type Machine struct {
	// ID is the machine identifier as it appears in MQTT topics
	// (e.g. "Milling1").
	ID string

	// Type is the machine classification.
	Type Type

	// Location is the plant area the machine is installed in.
	Location string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InferType derives a machine type from its identifier.
//
// Machine names on this floor follow a <Type><N> convention, so the
// prefix carries the classification. Used as a fallback for machines
// that have not been registered yet.
func InferType(id string) Type {
	lower := strings.ToLower(id)
	switch {
	case strings.HasPrefix(lower, "milling"):
		return TypeMilling
	case strings.HasPrefix(lower, "lathe"):
		return TypeLathe
	case strings.HasPrefix(lower, "saw"):
		return TypeSaw
	default:
		return TypeUnknown
	}
}
