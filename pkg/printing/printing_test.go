package printing

import (
	"testing"

	"github.com/OpenPrinting/goipp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/eolymp/direct-printing/pkg/ipp/ipptest"
)

type stack struct {
	server     *ipptest.Server
	catalog    *Catalog
	fetcher    *Fetcher
	negotiator *Negotiator
	dispatcher *Dispatcher
	tempDir    string
}

func newStack(t *testing.T, printers ...*ipptest.Printer) *stack {
	t.Helper()

	server := ipptest.NewServer(printers...)
	t.Cleanup(server.Close)

	names, err := NewSanitizer()
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	driver := NewCUPS(server.URI())
	catalog := NewCatalog(driver, names, log)
	fetcher := NewFetcher(driver, names, log)
	negotiator := NewNegotiator(catalog, fetcher, driver, names, log)
	tempDir := t.TempDir()

	return &stack{
		server:     server,
		catalog:    catalog,
		fetcher:    fetcher,
		negotiator: negotiator,
		dispatcher: NewDispatcher(negotiator, driver, tempDir, log),
		tempDir:    tempDir,
	}
}

func laserJet() *ipptest.Printer {
	return &ipptest.Printer{
		Name:           "HP LaserJet",
		Info:           "HP LaserJet Pro M404",
		MaxCopies:      99,
		Orientations:   []int{3, 4},
		MediaSupported: []string{"iso_a4_210x297mm"},
	}
}

func lookup(job goipp.Attributes, name string) (goipp.Attribute, bool) {
	for _, attr := range job {
		if attr.Name == name {
			return attr, true
		}
	}

	return goipp.Attribute{}, false
}

func orientation(o Orientation) *Orientation {
	return &o
}

func copies(n uint32) *uint32 {
	return &n
}
