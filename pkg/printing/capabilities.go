package printing

import (
	"math"
	"strconv"
	"strings"

	"github.com/OpenPrinting/goipp"

	"github.com/eolymp/direct-printing/pkg/ipp"
)

// option is a feature option as the driver reported it. The attribute is forwarded to the ticket untouched.
type option interface {
	attribute() goipp.Attribute
}

type OrientationOption struct {
	orientation Orientation
	native      goipp.Attribute
}

// Predefined returns the well-known orientation of this option, false for driver-private options.
func (o OrientationOption) Predefined() (Orientation, bool) {
	return o.orientation, o.orientation != ""
}

func (o OrientationOption) attribute() goipp.Attribute {
	return o.native
}

type PageSizeOption struct {
	Name         string
	WidthMicron  uint32
	HeightMicron uint32
	native       goipp.Attribute
}

func (p PageSizeOption) attribute() goipp.Attribute {
	return p.native
}

// Capabilities is a read-only snapshot of what a printer supports at the time it was fetched.
type Capabilities struct {
	MaxCopies    *uint32
	Orientations []OrientationOption
	PageSizes    []PageSizeOption
}

// Report converts the snapshot to its external shape, dropping driver-private orientations.
func (c *Capabilities) Report() PrinterCapability {
	report := PrinterCapability{MaxCopies: c.MaxCopies}

	for _, o := range c.Orientations {
		if name, ok := o.Predefined(); ok {
			report.Orientations = append(report.Orientations, name)
		}
	}

	// media-col-database repeats a size once per source and type
	seen := map[PageSize]bool{}
	for _, p := range c.PageSizes {
		size := PageSize{
			Name:         p.Name,
			WidthMicron:  p.WidthMicron,
			HeightMicron: p.HeightMicron,
		}

		if seen[size] {
			continue
		}

		seen[size] = true
		report.PageSizes = append(report.PageSizes, size)
	}

	return report
}

func newCapabilities(attrs *ipp.PrinterAttributes) *Capabilities {
	caps := &Capabilities{}

	if r := attrs.CopiesSupported; r != nil && r.Upper > 0 {
		upper := uint32(r.Upper)
		caps.MaxCopies = &upper
	}

	for _, v := range attrs.OrientationsSupported {
		option := OrientationOption{native: goipp.MakeAttribute("orientation-requested", v.T, v.V)}
		if n, ok := v.V.(goipp.Integer); ok {
			option.orientation, _ = orientationFromIPP(int(n))
		}

		caps.Orientations = append(caps.Orientations, option)
	}

	// media-col-database carries sources and margins the queue needs, prefer it over bare keywords
	if len(attrs.MediaColDatabase) > 0 {
		for _, col := range attrs.MediaColDatabase {
			if option, ok := mediaColOption(col); ok {
				caps.PageSizes = append(caps.PageSizes, option)
			}
		}

		return caps
	}

	for _, keyword := range attrs.MediaSupported {
		name, width, height, ok := parseMediaKeyword(keyword)
		if !ok {
			continue
		}

		caps.PageSizes = append(caps.PageSizes, PageSizeOption{
			Name:         name,
			WidthMicron:  width,
			HeightMicron: height,
			native:       goipp.MakeAttribute("media", goipp.TagKeyword, goipp.String(keyword)),
		})
	}

	return caps
}

func mediaColOption(col goipp.Collection) (PageSizeOption, bool) {
	option := PageSizeOption{native: goipp.MakeAttribute("media-col", goipp.TagBeginCollection, col)}
	found := false

	for _, member := range col {
		if len(member.Values) == 0 {
			continue
		}

		switch member.Name {
		case "media-size":
			size, ok := member.Values[0].V.(goipp.Collection)
			if !ok {
				return option, false
			}

			// custom size ranges are reported as rangeOfInteger and have no exact size
			x, okx := dimension(size, "x-dimension")
			y, oky := dimension(size, "y-dimension")
			if !okx || !oky {
				return option, false
			}

			option.WidthMicron, option.HeightMicron, found = x, y, true
		case "media-key", "media-size-name":
			if option.Name == "" {
				if name, _, _, ok := parseMediaKeyword(member.Values[0].V.String()); ok {
					option.Name = name
				}
			}
		}
	}

	return option, found
}

// dimension reads a media-size member, converting hundredths of a millimetre to micrometers.
func dimension(size goipp.Collection, name string) (uint32, bool) {
	for _, member := range size {
		if member.Name != name || len(member.Values) == 0 {
			continue
		}

		v, ok := member.Values[0].V.(goipp.Integer)
		if !ok || v <= 0 {
			return 0, false
		}

		return uint32(v) * 10, true
	}

	return 0, false
}

// parseMediaKeyword reads a PWG 5101.1 self-describing media name such as "iso_a4_210x297mm" or
// "na_letter_8.5x11in", returning a display name and the size in micrometers.
func parseMediaKeyword(keyword string) (string, uint32, uint32, bool) {
	parts := strings.Split(keyword, "_")
	if len(parts) < 3 {
		return "", 0, 0, false
	}

	class := parts[0]
	name := strings.Join(parts[1:len(parts)-1], "_")
	dims := parts[len(parts)-1]

	if class == "custom" && (strings.HasPrefix(name, "min") || strings.HasPrefix(name, "max")) {
		return "", 0, 0, false
	}

	var unit float64
	switch {
	case strings.HasSuffix(dims, "mm"):
		unit, dims = 1000, strings.TrimSuffix(dims, "mm")
	case strings.HasSuffix(dims, "in"):
		unit, dims = 25400, strings.TrimSuffix(dims, "in")
	default:
		return "", 0, 0, false
	}

	w, h, ok := strings.Cut(dims, "x")
	if !ok {
		return "", 0, 0, false
	}

	width, err := strconv.ParseFloat(w, 64)
	if err != nil || width <= 0 {
		return "", 0, 0, false
	}

	height, err := strconv.ParseFloat(h, 64)
	if err != nil || height <= 0 {
		return "", 0, 0, false
	}

	return mediaDisplayName(class, name), uint32(math.Round(width * unit)), uint32(math.Round(height * unit)), true
}

var mediaNames = map[string]string{
	"letter":      "Letter",
	"legal":       "Legal",
	"executive":   "Executive",
	"ledger":      "Ledger",
	"invoice":     "Statement",
	"govt-letter": "Government Letter",
	"index-3x5":   "Index Card 3x5",
	"index-4x6":   "Index Card 4x6",
	"index-5x8":   "Index Card 5x8",
	"number-10":   "Envelope #10",
	"monarch":     "Envelope Monarch",
}

func mediaDisplayName(class, name string) string {
	if n, ok := mediaNames[name]; ok {
		return n
	}

	// ISO and JIS series sizes: a4, b5, c6 ...
	if len(name) >= 2 && strings.ContainsRune("abc", rune(name[0])) && isDigits(name[1:]) {
		if class == "jis" {
			return strings.ToUpper(name) + " (JIS)"
		}

		return strings.ToUpper(name)
	}

	return name
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return s != ""
}
