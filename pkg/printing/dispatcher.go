package printing

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher prints one payload per call. Failed prints are not retried.
type Dispatcher struct {
	negotiator *Negotiator
	driver     Driver
	tempDir    string
	log        *zap.Logger
}

// NewDispatcher creates a dispatcher writing transient files to tempDir, os.TempDir() when empty.
func NewDispatcher(negotiator *Negotiator, driver Driver, tempDir string, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		negotiator: negotiator,
		driver:     driver,
		tempDir:    tempDir,
		log:        log,
	}
}

// Dispatch negotiates payload settings and submits the document, returning the spooler job id.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) (int, error) {
	file, err := os.CreateTemp(d.tempDir, "direct-printing-*.pdf")
	if err != nil {
		return -1, fmt.Errorf("create temporary file: %w", err)
	}

	filename := file.Name()

	defer func() {
		if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
			d.log.Warn("Failed to remove temporary file", zap.String("file", filename), zap.Error(err))
		}
	}()

	_, err = file.Write(payload.File)
	if cerr := file.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return -1, fmt.Errorf("write temporary file: %w", err)
	}

	ticket, err := d.negotiator.Negotiate(ctx, payload.Settings)
	if err != nil {
		return -1, err
	}

	return d.submit(ctx, ticket, filename)
}

func (d *Dispatcher) submit(ctx context.Context, ticket *Ticket, filename string) (int, error) {
	job, err := ticket.take()
	if err != nil {
		return -1, err
	}

	device := ticket.Device()
	name := "direct-printing-" + uuid.NewString()

	id, err := d.driver.PrintJob(ctx, device.Name, name, filename, job)
	if err != nil {
		d.log.Error("Failed to submit print job",
			zap.String("printer", device.Name),
			zap.String("job_name", name),
			zap.Error(err),
		)

		return -1, fmt.Errorf("%w: %s: %w", ErrPrintSubmissionFailed, device.Name, err)
	}

	d.log.Info("Print job submitted",
		zap.String("printer", device.Name),
		zap.String("job_name", name),
		zap.Int("job_id", id),
	)

	return id, nil
}
