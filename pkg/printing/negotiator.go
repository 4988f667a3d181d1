package printing

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Negotiator maps printer-agnostic settings onto the live options of one printer.
type Negotiator struct {
	catalog *Catalog
	fetcher *Fetcher
	driver  jobValidator
	names   *Sanitizer
	log     *zap.Logger
}

func NewNegotiator(catalog *Catalog, fetcher *Fetcher, driver Driver, names *Sanitizer, log *zap.Logger) *Negotiator {
	return &Negotiator{
		catalog: catalog,
		fetcher: fetcher,
		driver:  driver,
		names:   names,
		log:     log,
	}
}

// Negotiate resolves the printer, checks every requested option against the printer's current
// capabilities and builds a ticket. It stops at the first option the printer does not offer.
func (n *Negotiator) Negotiate(ctx context.Context, settings PrintSettings) (*Ticket, error) {
	device, ok := n.catalog.Find(ctx, settings.Printer)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchPrinter, settings.Printer)
	}

	caps, err := n.fetcher.Fetch(ctx, device)
	if err != nil {
		return nil, err
	}

	builder := NewTicketBuilder(device)

	// copies-supported is advisory here, the driver decides on out of range values
	if settings.Copies != nil {
		builder.Copies(*settings.Copies)
	}

	if settings.Orientation != nil {
		option, err := findOrientation(caps, *settings.Orientation)
		if err != nil {
			return nil, err
		}

		builder.Merge(option)
	}

	if settings.PageSize != nil {
		option, err := n.findPageSize(caps, *settings.PageSize)
		if err != nil {
			return nil, err
		}

		builder.Merge(option)
	}

	ticket, err := builder.Build(ctx, n.driver)
	if err != nil {
		n.log.Error("Printer rejected print ticket",
			zap.String("printer", device.Name),
			zap.Error(err),
		)

		return nil, err
	}

	return ticket, nil
}

// Capability resolves a printer by name and reports what it currently supports.
func (n *Negotiator) Capability(ctx context.Context, name string) (PrinterCapability, error) {
	device, ok := n.catalog.Find(ctx, name)
	if !ok {
		return PrinterCapability{}, fmt.Errorf("%w: %q", ErrNoSuchPrinter, name)
	}

	caps, err := n.fetcher.Fetch(ctx, device)
	if err != nil {
		return PrinterCapability{}, err
	}

	return caps.Report(), nil
}

func findOrientation(caps *Capabilities, requested Orientation) (OrientationOption, error) {
	want, ok := ParseOrientation(string(requested))
	if !ok {
		return OrientationOption{}, fmt.Errorf("%w: %q", ErrNoSuchOrientation, requested)
	}

	for _, option := range caps.Orientations {
		if have, ok := option.Predefined(); ok && have == want {
			return option, nil
		}
	}

	return OrientationOption{}, fmt.Errorf("%w: %q", ErrNoSuchOrientation, requested)
}

// findPageSize matches by name when one is given and by exact dimensions otherwise, never both.
func (n *Negotiator) findPageSize(caps *Capabilities, requested PageSize) (PageSizeOption, error) {
	if requested.Name != "" {
		name := n.names.Sanitize(requested.Name)

		for _, option := range caps.PageSizes {
			if option.Name != "" && option.Name == name {
				return option, nil
			}
		}

		return PageSizeOption{}, fmt.Errorf("%w: %q", ErrNoSuchPageSize, requested.Name)
	}

	for _, option := range caps.PageSizes {
		if option.WidthMicron == requested.WidthMicron && option.HeightMicron == requested.HeightMicron {
			return option, nil
		}
	}

	return PageSizeOption{}, fmt.Errorf("%w: %dx%d", ErrNoSuchPageSize, requested.WidthMicron, requested.HeightMicron)
}
