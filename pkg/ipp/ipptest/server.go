// Package ipptest provides an in-process spooler that speaks enough of the CUPS flavour of IPP
// to exercise printer enumeration, capability queries, Validate-Job and Print-Job in tests.
package ipptest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/OpenPrinting/goipp"
)

// client-error-attributes-or-values-not-supported
const statusNotSupported = goipp.Status(0x040b)

// Printer describes one queue of the fake spooler.
type Printer struct {
	Name  string
	Info  string
	State int // printer-state, 3 (idle) when zero

	// MaxCopies is reported as copies-supported 1..MaxCopies, omitted when zero.
	MaxCopies        int
	Orientations     []int
	MediaSupported   []string
	MediaColDatabase []goipp.Collection

	// FailAttributes makes Get-Printer-Attributes fail with an internal error.
	FailAttributes bool
	// MalformedAttributes reports copies-supported with a keyword value.
	MalformedAttributes bool
	// Reject is consulted by Validate-Job and Print-Job after the built-in checks.
	Reject func(job goipp.Attributes) goipp.Status
	// FailPrint makes Print-Job fail with an internal error while Validate-Job still succeeds.
	FailPrint bool
	// JobState is reported by Get-Job-Attributes, 9 (completed) when zero.
	JobState int
}

type Job struct {
	ID         int
	Printer    string
	Name       string
	Format     string
	User       string
	Attributes goipp.Attributes
	Document   []byte
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	printers []*Printer
	jobs     []Job
	ops      []goipp.Op
	failList bool
}

func NewServer(printers ...*Printer) *Server {
	s := &Server{printers: printers}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// URI returns the ipp:// address of the spooler root.
func (s *Server) URI() string {
	return "ipp://" + strings.TrimPrefix(s.Server.URL, "http://")
}

// PrinterURI returns the ipp:// address of one queue.
func (s *Server) PrinterURI(name string) string {
	return s.URI() + "/printers/" + url.PathEscape(name)
}

// SetFailList makes CUPS-Get-Printers fail.
func (s *Server) SetFailList(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failList = fail
}

func (s *Server) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Job(nil), s.jobs...)
}

// Operations returns every operation received, in order.
func (s *Server) Operations() []goipp.Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]goipp.Op(nil), s.ops...)
}

// Count returns how many times op was received.
func (s *Server) Count(op goipp.Op) int {
	n := 0
	for _, o := range s.Operations() {
		if o == op {
			n++
		}
	}
	return n
}

// MediaCol builds a media-col-database entry with media-size in hundredths of a millimetre.
func MediaCol(key string, x, y int, extra ...goipp.Attribute) goipp.Collection {
	size := goipp.Collection{
		goipp.MakeAttribute("x-dimension", goipp.TagInteger, goipp.Integer(x)),
		goipp.MakeAttribute("y-dimension", goipp.TagInteger, goipp.Integer(y)),
	}

	col := goipp.Collection{goipp.MakeAttribute("media-size", goipp.TagBeginCollection, size)}
	if key != "" {
		col = append(col, goipp.MakeAttribute("media-key", goipp.TagKeyword, goipp.String(key)))
	}

	return append(col, extra...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	in := goipp.Message{}
	if err := in.Decode(r.Body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	document, _ := io.ReadAll(r.Body)

	op := goipp.Op(in.Code)

	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()

	out := s.respond(op, &in, document)

	data, err := out.EncodeBytes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", goipp.ContentType)
	_, _ = w.Write(data)
}

func (s *Server) respond(op goipp.Op, in *goipp.Message, document []byte) *goipp.Message {
	switch op {
	case goipp.OpCupsGetPrinters:
		return s.listPrinters(in)
	case goipp.OpGetPrinterAttributes:
		p, out := s.lookup(in)
		if p == nil {
			return out
		}
		if p.FailAttributes {
			return response(in, goipp.StatusErrorInternal)
		}
		out.Printer = printerAttributes(s, p, true)
		return out
	case goipp.OpValidateJob:
		p, out := s.lookup(in)
		if p == nil {
			return out
		}
		if status := validate(p, in.Job); status != goipp.StatusOk {
			return response(in, status)
		}
		return out
	case goipp.OpPrintJob:
		return s.printJob(in, document)
	case goipp.OpGetJobAttributes:
		return s.jobAttributes(in)
	default:
		return response(in, goipp.Status(0x0501)) // server-error-operation-not-supported
	}
}

func (s *Server) listPrinters(in *goipp.Message) *goipp.Message {
	s.mu.Lock()
	fail := s.failList
	s.mu.Unlock()

	if fail {
		return response(in, goipp.StatusErrorInternal)
	}

	out := response(in, goipp.StatusOk)
	out.Groups = goipp.Groups{{Tag: goipp.TagOperationGroup, Attrs: out.Operation}}
	for _, p := range s.printers {
		out.Groups = append(out.Groups, goipp.Group{Tag: goipp.TagPrinterGroup, Attrs: printerAttributes(s, p, false)})
	}

	return out
}

func (s *Server) printJob(in *goipp.Message, document []byte) *goipp.Message {
	p, out := s.lookup(in)
	if p == nil {
		return out
	}

	if status := validate(p, in.Job); status != goipp.StatusOk {
		return response(in, status)
	}

	if p.FailPrint {
		return response(in, goipp.StatusErrorInternal)
	}

	s.mu.Lock()
	job := Job{
		ID:         len(s.jobs) + 1,
		Printer:    p.Name,
		Name:       operationString(in, "job-name"),
		Format:     operationString(in, "document-format"),
		User:       operationString(in, "requesting-user-name"),
		Attributes: in.Job,
		Document:   document,
	}
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()

	out.Job.Add(goipp.MakeAttribute("job-id", goipp.TagInteger, goipp.Integer(job.ID)))
	out.Job.Add(goipp.MakeAttribute("job-state", goipp.TagEnum, goipp.Integer(3)))
	return out
}

func (s *Server) jobAttributes(in *goipp.Message) *goipp.Message {
	p, out := s.lookup(in)
	if p == nil {
		return out
	}

	id := 0
	for _, attr := range in.Operation {
		if attr.Name == "job-id" && len(attr.Values) > 0 {
			if v, ok := attr.Values[0].V.(goipp.Integer); ok {
				id = int(v)
			}
		}
	}

	for _, job := range s.Jobs() {
		if job.ID != id || job.Printer != p.Name {
			continue
		}

		state := p.JobState
		if state == 0 {
			state = 9
		}

		out.Job.Add(goipp.MakeAttribute("job-id", goipp.TagInteger, goipp.Integer(id)))
		out.Job.Add(goipp.MakeAttribute("job-state", goipp.TagEnum, goipp.Integer(state)))
		return out
	}

	return response(in, goipp.StatusErrorNotFound)
}

// lookup resolves the queue named by printer-uri, returning a ready response or an error response.
func (s *Server) lookup(in *goipp.Message) (*Printer, *goipp.Message) {
	raw := operationString(in, "printer-uri")

	u, err := url.Parse(raw)
	if err != nil {
		return nil, response(in, goipp.StatusErrorBadRequest)
	}

	name := strings.TrimPrefix(u.Path, "/printers/")
	for _, p := range s.printers {
		if p.Name == name {
			return p, response(in, goipp.StatusOk)
		}
	}

	return nil, response(in, goipp.StatusErrorNotFound)
}

func validate(p *Printer, job goipp.Attributes) goipp.Status {
	for _, attr := range job {
		if len(attr.Values) == 0 {
			return goipp.StatusErrorBadRequest
		}

		v := attr.Values[0].V

		switch attr.Name {
		case "copies":
			n, ok := v.(goipp.Integer)
			if !ok || n < 1 || (p.MaxCopies > 0 && int(n) > p.MaxCopies) {
				return statusNotSupported
			}
		case "orientation-requested":
			if !containsValue(p.Orientations, v) {
				return statusNotSupported
			}
		case "media":
			if !containsString(p.MediaSupported, v.String()) {
				return statusNotSupported
			}
		case "media-col":
			found := false
			for _, col := range p.MediaColDatabase {
				if col.String() == v.String() {
					found = true
				}
			}
			if !found {
				return statusNotSupported
			}
		}
	}

	if p.Reject != nil {
		return p.Reject(job)
	}

	return goipp.StatusOk
}

func printerAttributes(s *Server, p *Printer, full bool) goipp.Attributes {
	state := p.State
	if state == 0 {
		state = 3
	}

	// cupsd order, state attributes come before printer-name
	var attrs goipp.Attributes
	attrs.Add(goipp.MakeAttribute("printer-state", goipp.TagEnum, goipp.Integer(state)))
	attrs.Add(goipp.MakeAttribute("printer-state-reasons", goipp.TagKeyword, goipp.String(stateReason(state))))
	attrs.Add(goipp.MakeAttribute("printer-name", goipp.TagName, goipp.String(p.Name)))
	attrs.Add(goipp.MakeAttribute("printer-info", goipp.TagText, goipp.String(p.Info)))
	attrs.Add(goipp.MakeAttribute("printer-uri-supported", goipp.TagURI, goipp.String(s.PrinterURI(p.Name))))

	if !full {
		return attrs
	}

	if p.MalformedAttributes {
		attrs.Add(goipp.MakeAttribute("copies-supported", goipp.TagKeyword, goipp.String("many")))
	} else if p.MaxCopies > 0 {
		attrs.Add(goipp.MakeAttribute("copies-supported", goipp.TagRange, goipp.Range{Lower: 1, Upper: p.MaxCopies}))
	}

	if len(p.Orientations) > 0 {
		attr := goipp.MakeAttribute("orientation-requested-supported", goipp.TagEnum, goipp.Integer(p.Orientations[0]))
		for _, o := range p.Orientations[1:] {
			attr.Values.Add(goipp.TagEnum, goipp.Integer(o))
		}
		attrs.Add(attr)
	}

	if len(p.MediaSupported) > 0 {
		attr := goipp.MakeAttribute("media-supported", goipp.TagKeyword, goipp.String(p.MediaSupported[0]))
		for _, m := range p.MediaSupported[1:] {
			attr.Values.Add(goipp.TagKeyword, goipp.String(m))
		}
		attrs.Add(attr)
	}

	if len(p.MediaColDatabase) > 0 {
		attr := goipp.MakeAttribute("media-col-database", goipp.TagBeginCollection, p.MediaColDatabase[0])
		for _, col := range p.MediaColDatabase[1:] {
			attr.Values.Add(goipp.TagBeginCollection, col)
		}
		attrs.Add(attr)
	}

	return attrs
}

func stateReason(state int) string {
	if state == 5 {
		return "paused"
	}

	return "none"
}

func response(in *goipp.Message, status goipp.Status) *goipp.Message {
	out := goipp.NewResponse(goipp.DefaultVersion, status, in.RequestID)
	out.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String("utf-8")))
	out.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String("en-US")))
	return out
}

func operationString(in *goipp.Message, name string) string {
	for _, attr := range in.Operation {
		if attr.Name == name && len(attr.Values) > 0 {
			return attr.Values[0].V.String()
		}
	}

	return ""
}

func containsValue(values []int, v goipp.Value) bool {
	n, ok := v.(goipp.Integer)
	if !ok {
		return false
	}

	for _, value := range values {
		if value == int(n) {
			return true
		}
	}

	return false
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}

	return false
}
