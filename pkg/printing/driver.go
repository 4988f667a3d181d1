package printing

import (
	"context"
	"net/url"
	"strings"

	"github.com/OpenPrinting/goipp"

	"github.com/eolymp/direct-printing/pkg/ipp"
)

// Driver is the OS print pipeline as seen by the negotiation core.
type Driver interface {
	Printers(ctx context.Context) ([]*ipp.PrinterAttributes, error)
	PrinterAttributes(ctx context.Context, printer string) (*ipp.PrinterAttributes, error)
	ValidateJob(ctx context.Context, printer string, job goipp.Attributes) error
	PrintJob(ctx context.Context, printer, name, filename string, job goipp.Attributes) (int, error)
	JobState(ctx context.Context, printer string, job int) (ipp.JobState, error)
}

// CUPS talks to a CUPS scheduler over IPP.
type CUPS struct {
	server string
	opts   []ipp.Option
}

// NewCUPS creates a driver for the scheduler at server, e.g. "ipp://localhost:631".
func NewCUPS(server string, opts ...ipp.Option) *CUPS {
	return &CUPS{server: strings.TrimSuffix(server, "/"), opts: opts}
}

func (c *CUPS) Printers(ctx context.Context) ([]*ipp.PrinterAttributes, error) {
	return ipp.New(c.server+"/", c.opts...).Printers(ctx)
}

func (c *CUPS) PrinterAttributes(ctx context.Context, printer string) (*ipp.PrinterAttributes, error) {
	return c.queue(printer).PrinterAttributes(ctx)
}

func (c *CUPS) ValidateJob(ctx context.Context, printer string, job goipp.Attributes) error {
	return c.queue(printer).ValidateJob(ctx, job)
}

func (c *CUPS) PrintJob(ctx context.Context, printer, name, filename string, job goipp.Attributes) (int, error) {
	return c.queue(printer).PrintJobFile(ctx, name, filename, "application/pdf", job)
}

func (c *CUPS) JobState(ctx context.Context, printer string, job int) (ipp.JobState, error) {
	attrs, err := c.queue(printer).JobAttributes(ctx, job)
	if err != nil {
		return 0, err
	}

	return attrs.State, nil
}

// PrinterState returns the current state of one queue.
func (c *CUPS) PrinterState(ctx context.Context, printer string) (ipp.PrinterState, error) {
	attrs, err := c.queue(printer).PrinterAttributes(ctx)
	if err != nil {
		return ipp.PrinterUnknown, err
	}

	return attrs.State, nil
}

func (c *CUPS) queue(printer string) *ipp.Client {
	return ipp.New(c.server+"/printers/"+url.PathEscape(printer), c.opts...)
}
