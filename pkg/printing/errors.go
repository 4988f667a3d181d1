package printing

import (
	"errors"

	"github.com/eolymp/direct-printing/pkg/ipp"
)

var (
	ErrNoSuchPrinter         = errors.New("no such printer")
	ErrDriverQueryFailed     = errors.New("driver query failed")
	ErrNoSuchOrientation     = errors.New("no such orientation")
	ErrNoSuchPageSize        = errors.New("no such page size")
	ErrTicketBuildFailed     = errors.New("ticket build failed")
	ErrPrintSubmissionFailed = errors.New("print submission failed")
	ErrTicketConsumed        = errors.New("ticket already submitted")
)

// Message turns an error returned by this package into the short text shown to API clients.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSuchPrinter):
		return "No such printer"
	case errors.Is(err, ErrNoSuchOrientation):
		return "No such orientation"
	case errors.Is(err, ErrNoSuchPageSize):
		return "No such page size"
	case errors.Is(err, ErrDriverQueryFailed):
		return "Failed to query printer capabilities"
	case errors.Is(err, ErrTicketBuildFailed):
		return "Printer rejected the print settings"
	case errors.Is(err, ErrPrintSubmissionFailed):
		var status *ipp.StatusError
		if errors.As(err, &status) {
			return "Print submission failed: " + status.Error()
		}
		return "Print submission failed"
	default:
		return "Internal error"
	}
}

// IsDriverFault reports whether err originates in the spooler or driver rather than in the request.
func IsDriverFault(err error) bool {
	return errors.Is(err, ErrDriverQueryFailed) || errors.Is(err, ErrTicketBuildFailed) || errors.Is(err, ErrPrintSubmissionFailed)
}
