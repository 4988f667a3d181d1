package printing

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/OpenPrinting/goipp"
)

type jobValidator interface {
	ValidateJob(ctx context.Context, printer string, job goipp.Attributes) error
}

// Ticket is a validated set of job attributes for one device. It can be submitted once.
type Ticket struct {
	device   Device
	job      goipp.Attributes
	consumed atomic.Bool
}

func (t *Ticket) Device() Device {
	return t.device
}

func (t *Ticket) take() (goipp.Attributes, error) {
	if !t.consumed.CompareAndSwap(false, true) {
		return nil, ErrTicketConsumed
	}

	return t.job, nil
}

// TicketBuilder collects individually validated feature selections for one device.
type TicketBuilder struct {
	device Device
	job    goipp.Attributes
}

func NewTicketBuilder(device Device) *TicketBuilder {
	return &TicketBuilder{device: device}
}

// Copies sets the copy count. IPP integers are signed 32-bit, larger counts are clamped and left to the driver to reject.
func (b *TicketBuilder) Copies(n uint32) {
	b.set(goipp.MakeAttribute("copies", goipp.TagInteger, goipp.Integer(min(n, math.MaxInt32))))
}

// Merge adds an option taken from the device's capability snapshot.
func (b *TicketBuilder) Merge(o option) {
	b.set(o.attribute())
}

func (b *TicketBuilder) set(attr goipp.Attribute) {
	for i := range b.job {
		if b.job[i].Name == attr.Name {
			b.job[i] = attr
			return
		}
	}

	b.job = append(b.job, attr)
}

// Build asks the driver to validate the merged options as a whole.
func (b *TicketBuilder) Build(ctx context.Context, v jobValidator) (*Ticket, error) {
	if err := v.ValidateJob(ctx, b.device.Name, b.job); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTicketBuildFailed, err)
	}

	job := make(goipp.Attributes, len(b.job))
	copy(job, b.job)

	return &Ticket{device: b.device, job: job}, nil
}
