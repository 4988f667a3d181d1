package printing

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Fetcher queries a printer's supported feature options. Snapshots are never cached.
type Fetcher struct {
	driver Driver
	names  *Sanitizer
	log    *zap.Logger
}

func NewFetcher(driver Driver, names *Sanitizer, log *zap.Logger) *Fetcher {
	return &Fetcher{driver: driver, names: names, log: log}
}

func (f *Fetcher) Fetch(ctx context.Context, device Device) (*Capabilities, error) {
	attrs, err := f.driver.PrinterAttributes(ctx, device.Name)
	if err != nil {
		f.log.Error("Failed to query printer capabilities",
			zap.String("printer", device.Name),
			zap.Error(err),
		)

		return nil, fmt.Errorf("%w: %s: %w", ErrDriverQueryFailed, device.Name, err)
	}

	caps := newCapabilities(attrs)
	for i := range caps.PageSizes {
		caps.PageSizes[i].Name = f.names.Sanitize(caps.PageSizes[i].Name)
	}

	f.log.Debug("Fetched printer capabilities",
		zap.String("printer", device.Name),
		zap.Int("orientations", len(caps.Orientations)),
		zap.Int("page_sizes", len(caps.PageSizes)),
	)

	return caps, nil
}
