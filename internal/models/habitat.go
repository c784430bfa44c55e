package models

import (
	"fmt"
	"strings"
)

// Habitat is the canonical classification of where an animal lives.
// The stored values are the Macedonian forms; the English synonyms are
// accepted as input and exposed as the display label.
type Habitat string

const (
	HabitatLand  Habitat = "kopno"
	HabitatWater Habitat = "voda"
	HabitatAir   Habitat = "vozduh"
)

// ParseHabitat maps free-form input onto exactly one canonical habitat.
// Unknown values are an error, never a silent default.
func ParseHabitat(value string) (Habitat, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "kopno", "land":
		return HabitatLand, nil
	case "voda", "water":
		return HabitatWater, nil
	case "vozduh", "air":
		return HabitatAir, nil
	default:
		return "", fmt.Errorf("unknown habitat %q", value)
	}
}

// DisplayLabel returns the English label rendered in the `type` field.
func (h Habitat) DisplayLabel() string {
	switch h {
	case HabitatLand:
		return "land"
	case HabitatWater:
		return "water"
	case HabitatAir:
		return "air"
	default:
		return ""
	}
}
