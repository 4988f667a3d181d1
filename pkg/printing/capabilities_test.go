package printing

import (
	"testing"

	"github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eolymp/direct-printing/pkg/ipp"
	"github.com/eolymp/direct-printing/pkg/ipp/ipptest"
)

func TestParseMediaKeyword(t *testing.T) {
	tests := []struct {
		keyword string
		name    string
		width   uint32
		height  uint32
		ok      bool
	}{
		{"iso_a4_210x297mm", "A4", 210000, 297000, true},
		{"iso_a5_148x210mm", "A5", 148000, 210000, true},
		{"jis_b5_182x257mm", "B5 (JIS)", 182000, 257000, true},
		{"na_letter_8.5x11in", "Letter", 215900, 279400, true},
		{"na_number-10_4.125x9.5in", "Envelope #10", 104775, 241300, true},
		{"om_small-photo_100x150mm", "small-photo", 100000, 150000, true},
		{"custom_min_25.4x25.4mm", "", 0, 0, false},
		{"custom_max_215.9x355.6mm", "", 0, 0, false},
		{"iso_a4", "", 0, 0, false},
		{"iso_a4_210x297pt", "", 0, 0, false},
		{"iso_a4_210mm", "", 0, 0, false},
		{"iso_a4_0x297mm", "", 0, 0, false},
		{"auto", "", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			name, width, height, ok := parseMediaKeyword(tt.keyword)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.width, width)
			assert.Equal(t, tt.height, height)
		})
	}
}

func TestNewCapabilities(t *testing.T) {
	max := goipp.Range{Lower: 1, Upper: 50}

	var orientations goipp.Values
	orientations.Add(goipp.TagEnum, goipp.Integer(3))
	orientations.Add(goipp.TagEnum, goipp.Integer(4))
	orientations.Add(goipp.TagEnum, goipp.Integer(7))

	caps := newCapabilities(&ipp.PrinterAttributes{
		CopiesSupported:       &max,
		OrientationsSupported: orientations,
		MediaSupported:        []string{"iso_a4_210x297mm", "custom_min_10x10mm", "na_letter_8.5x11in"},
	})

	require.NotNil(t, caps.MaxCopies)
	assert.Equal(t, uint32(50), *caps.MaxCopies)
	assert.Len(t, caps.Orientations, 3)

	_, ok := caps.Orientations[2].Predefined()
	assert.False(t, ok, "none is a driver-private orientation")

	report := caps.Report()
	assert.Equal(t, []Orientation{Portrait, Landscape}, report.Orientations)
	assert.Equal(t, []PageSize{
		{Name: "A4", WidthMicron: 210000, HeightMicron: 297000},
		{Name: "Letter", WidthMicron: 215900, HeightMicron: 279400},
	}, report.PageSizes)
}

func TestNewCapabilities_MediaColDatabase(t *testing.T) {
	ranged := goipp.Collection{
		goipp.MakeAttribute("media-size", goipp.TagBeginCollection, goipp.Collection{
			goipp.MakeAttribute("x-dimension", goipp.TagRange, goipp.Range{Lower: 2540, Upper: 21590}),
			goipp.MakeAttribute("y-dimension", goipp.TagRange, goipp.Range{Lower: 2540, Upper: 35560}),
		}),
	}

	caps := newCapabilities(&ipp.PrinterAttributes{
		MediaSupported: []string{"iso_a4_210x297mm", "na_letter_8.5x11in"},
		MediaColDatabase: []goipp.Collection{
			ipptest.MediaCol("iso_a4_210x297mm", 21000, 29700),
			ipptest.MediaCol("", 10000, 15000),
			ranged,
		},
	})

	// media-col-database wins over media-supported, unnamed sizes stay, custom ranges are skipped
	report := caps.Report()
	assert.Equal(t, []PageSize{
		{Name: "A4", WidthMicron: 210000, HeightMicron: 297000},
		{WidthMicron: 100000, HeightMicron: 150000},
	}, report.PageSizes)

	assert.Equal(t, "media-col", caps.PageSizes[0].attribute().Name)
}

func TestCapabilities_ReportListsEachSizeOnce(t *testing.T) {
	tray := func(source string) goipp.Attribute {
		return goipp.MakeAttribute("media-source", goipp.TagKeyword, goipp.String(source))
	}

	caps := newCapabilities(&ipp.PrinterAttributes{
		MediaColDatabase: []goipp.Collection{
			ipptest.MediaCol("iso_a4_210x297mm", 21000, 29700, tray("tray-1")),
			ipptest.MediaCol("iso_a4_210x297mm", 21000, 29700, tray("tray-2")),
			ipptest.MediaCol("na_letter_8.5x11in", 21590, 27940, tray("tray-1")),
			ipptest.MediaCol("iso_a4_210x297mm", 21000, 29700, tray("manual")),
		},
	})

	assert.Len(t, caps.PageSizes, 4)
	assert.Equal(t, []PageSize{
		{Name: "A4", WidthMicron: 210000, HeightMicron: 297000},
		{Name: "Letter", WidthMicron: 215900, HeightMicron: 279400},
	}, caps.Report().PageSizes)
}

func TestCapabilities_ReportOmitsEmpty(t *testing.T) {
	report := newCapabilities(&ipp.PrinterAttributes{}).Report()

	assert.Nil(t, report.MaxCopies)
	assert.Nil(t, report.Orientations)
	assert.Nil(t, report.PageSizes)
}
