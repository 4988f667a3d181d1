package printing

// PageSize identifies a page-media-size either by display name or, when Name is empty, by exact dimensions.
type PageSize struct {
	Name         string `json:"name,omitempty"`
	WidthMicron  uint32 `json:"width_micron"`
	HeightMicron uint32 `json:"height_micron"`
}

// PrintSettings is a printer-agnostic request; it states intent and is only validated during negotiation.
type PrintSettings struct {
	Printer     string       `json:"printer" binding:"required"`
	Copies      *uint32      `json:"copies,omitempty"`
	Orientation *Orientation `json:"orientation,omitempty" binding:"omitempty,orientation"`
	PageSize    *PageSize    `json:"page_size,omitempty"`
}

// PrinterCapability is the externally visible shape of a capability snapshot.
type PrinterCapability struct {
	MaxCopies    *uint32       `json:"max_copies,omitempty"`
	Orientations []Orientation `json:"orientations,omitempty"`
	PageSizes    []PageSize    `json:"page_sizes,omitempty"`
}

// Payload is a document together with the settings it should be printed with.
type Payload struct {
	File     []byte
	Settings PrintSettings
}
