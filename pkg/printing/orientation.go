package printing

import "strings"

// Orientation is one of the predefined page orientations clients can ask for.
type Orientation string

const (
	Portrait         Orientation = "portrait"
	Landscape        Orientation = "landscape"
	ReversePortrait  Orientation = "reverse_portrait"
	ReverseLandscape Orientation = "reverse_landscape"
)

var orientations = map[string]Orientation{
	"portrait":         Portrait,
	"landscape":        Landscape,
	"reverseportrait":  ReversePortrait,
	"reverselandscape": ReverseLandscape,
}

// ParseOrientation accepts snake_case ("reverse_portrait") and PascalCase ("ReversePortrait") spellings.
func ParseOrientation(s string) (Orientation, bool) {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(s))
	o, ok := orientations[key]
	return o, ok
}

// orientation-requested enum values, RFC 8011 section 5.2.10
func orientationFromIPP(v int) (Orientation, bool) {
	switch v {
	case 3:
		return Portrait, true
	case 4:
		return Landscape, true
	case 5:
		return ReverseLandscape, true
	case 6:
		return ReversePortrait, true
	default:
		return "", false
	}
}
