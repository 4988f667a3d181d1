package relay

import (
	printerpb "github.com/eolymp/go-sdk/eolymp/printer"

	"github.com/eolymp/direct-printing/pkg/ipp"
)

func statusMessage(status printerpb.Printer_Status) *printerpb.PrinterConnectorClientMessage {
	return &printerpb.PrinterConnectorClientMessage{
		Message: &printerpb.PrinterConnectorClientMessage_Status_{
			Status: &printerpb.PrinterConnectorClientMessage_Status{
				Status: status,
			},
		},
	}
}

func reportMessage(status printerpb.Job_Status) *printerpb.PrinterConnectorClientMessage {
	return &printerpb.PrinterConnectorClientMessage{
		Message: &printerpb.PrinterConnectorClientMessage_Report_{
			Report: &printerpb.PrinterConnectorClientMessage_Report{
				Status: status,
			},
		},
	}
}

// printerStatus maps a queue state onto the status reported to the server, false for states that are not reported.
func printerStatus(state ipp.PrinterState) (printerpb.Printer_Status, bool) {
	switch state {
	case ipp.PrinterIdle:
		return printerpb.Printer_READY, true
	case ipp.PrinterProcessing:
		return printerpb.Printer_BUSY, true
	case ipp.PrinterStopped:
		return printerpb.Printer_OFFLINE, true
	default:
		return 0, false
	}
}

// jobStatus maps a terminal spooler job state onto the outcome reported to the server.
func jobStatus(state ipp.JobState) printerpb.Job_Status {
	if state == ipp.JobCanceled || state == ipp.JobAborted {
		return printerpb.Job_CANCELLED
	}

	return printerpb.Job_COMPLETE
}
