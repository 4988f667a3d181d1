package ipp

import "github.com/OpenPrinting/goipp"

type PrinterAttributes struct {
	Name                string
	Info                string
	URI                 string
	State               PrinterState
	StateReason         string
	QueuedJobCount      int
	ColorSupported      bool
	OperationsSupported []goipp.Op

	// CopiesSupported is nil when the printer does not report copies-supported.
	CopiesSupported *goipp.Range

	// OrientationsSupported keeps the values exactly as the printer reported them.
	OrientationsSupported goipp.Values

	MediaSupported   []string
	MediaColDatabase []goipp.Collection
}

func parsePrinterAttributes(in goipp.Attributes) (*PrinterAttributes, error) {
	attrs := &PrinterAttributes{}

	for _, attr := range in {
		if len(attr.Values) == 0 {
			continue
		}

		switch attr.Name {
		case "printer-name":
			attrs.Name = attr.Values[0].V.String()
		case "printer-info":
			attrs.Info = attr.Values[0].V.String()
		case "printer-uri-supported":
			attrs.URI = attr.Values[0].V.String()
		case "printer-state":
			v, ok := attr.Values[0].V.(goipp.Integer)
			if !ok {
				return nil, malformed(attr)
			}
			attrs.State = PrinterState(v)
		case "printer-state-reasons":
			attrs.StateReason = attr.Values[0].V.String()
		case "queued-job-count":
			v, ok := attr.Values[0].V.(goipp.Integer)
			if !ok {
				return nil, malformed(attr)
			}
			attrs.QueuedJobCount = int(v)
		case "color-supported":
			v, ok := attr.Values[0].V.(goipp.Boolean)
			if !ok {
				return nil, malformed(attr)
			}
			attrs.ColorSupported = bool(v)
		case "operations-supported":
			for _, v := range attr.Values {
				if op, ok := v.V.(goipp.Integer); ok {
					attrs.OperationsSupported = append(attrs.OperationsSupported, goipp.Op(op))
				}
			}
		case "copies-supported":
			switch v := attr.Values[0].V.(type) {
			case goipp.Range:
				attrs.CopiesSupported = &v
			case goipp.Integer:
				attrs.CopiesSupported = &goipp.Range{Lower: 1, Upper: int(v)}
			default:
				return nil, malformed(attr)
			}
		case "orientation-requested-supported":
			for _, v := range attr.Values {
				if _, ok := v.V.(goipp.Integer); !ok {
					return nil, malformed(attr)
				}
			}
			attrs.OrientationsSupported = attr.Values
		case "media-supported":
			for _, v := range attr.Values {
				attrs.MediaSupported = append(attrs.MediaSupported, v.V.String())
			}
		case "media-col-database":
			for _, v := range attr.Values {
				col, ok := v.V.(goipp.Collection)
				if !ok {
					return nil, malformed(attr)
				}
				attrs.MediaColDatabase = append(attrs.MediaColDatabase, col)
			}
		}
	}

	return attrs, nil
}
