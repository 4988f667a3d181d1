package printing

import (
	"context"

	"go.uber.org/zap"

	"github.com/eolymp/direct-printing/pkg/ipp"
)

// Device is a printer queue as enumerated right now.
type Device struct {
	// Name is the driver-assigned queue name used to address the printer.
	Name string
	// DisplayName is Name after sanitation; it is what clients see and ask for.
	DisplayName string
	Info        string
	State       ipp.PrinterState
}

// Catalog enumerates printers on demand; nothing is cached between calls.
type Catalog struct {
	driver Driver
	names  *Sanitizer
	log    *zap.Logger
}

func NewCatalog(driver Driver, names *Sanitizer, log *zap.Logger) *Catalog {
	return &Catalog{driver: driver, names: names, log: log}
}

// List returns the printers currently known to the spooler. Enumeration failures yield an empty list.
func (c *Catalog) List(ctx context.Context) []Device {
	printers, err := c.driver.Printers(ctx)
	if err != nil {
		c.log.Warn("Failed to enumerate printers", zap.Error(err))
		return []Device{}
	}

	devices := make([]Device, 0, len(printers))
	for _, p := range printers {
		if p.Name == "" {
			continue
		}

		device := Device{
			Name:        p.Name,
			DisplayName: c.names.Sanitize(p.Name),
			Info:        p.Info,
			State:       p.State,
		}

		c.log.Debug("Printer enumerated",
			zap.String("printer", device.Name),
			zap.String("info", device.Info),
			zap.Stringer("state", device.State),
			zap.String("state_reason", p.StateReason),
		)

		devices = append(devices, device)
	}

	return devices
}

// Find looks a printer up by exact, case-sensitive name.
func (c *Catalog) Find(ctx context.Context, name string) (Device, bool) {
	name = c.names.Sanitize(name)

	for _, d := range c.List(ctx) {
		if d.DisplayName == name {
			return d, true
		}
	}

	return Device{}, false
}
