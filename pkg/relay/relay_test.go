package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPrinting/goipp"
	printerpb "github.com/eolymp/go-sdk/eolymp/printer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/eolymp/direct-printing/pkg/ipp"
	"github.com/eolymp/direct-printing/pkg/ipp/ipptest"
	"github.com/eolymp/direct-printing/pkg/printing"
	"github.com/eolymp/direct-printing/pkg/settings"
)

var document = []byte("%PDF-1.4\n%%EOF\n")

type fakeStream struct {
	ctx  context.Context
	in   chan *printerpb.PrinterConnectorServerMessage
	sent chan *printerpb.PrinterConnectorClientMessage
}

func (s *fakeStream) Send(msg *printerpb.PrinterConnectorClientMessage) error {
	s.sent <- msg
	return nil
}

func (s *fakeStream) Recv() (*printerpb.PrinterConnectorServerMessage, error) {
	select {
	case msg, ok := <-s.in:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (s *fakeStream) CloseSend() error {
	return nil
}

type fixture struct {
	relay    *Relay
	stream   *fakeStream
	dialed   chan metadata.MD
	server   *ipptest.Server
	docs     *httptest.Server
	settings string
}

func newFixture(t *testing.T, cfg Config, printer *ipptest.Printer) *fixture {
	t.Helper()

	f := &fixture{
		dialed: make(chan metadata.MD, 4),
		server: ipptest.NewServer(printer),
	}
	t.Cleanup(f.server.Close)

	f.docs = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/document.pdf" {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(document)
	}))
	t.Cleanup(f.docs.Close)

	names, err := printing.NewSanitizer()
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	driver := printing.NewCUPS(f.server.URI())
	catalog := printing.NewCatalog(driver, names, log)
	fetcher := printing.NewFetcher(driver, names, log)
	negotiator := printing.NewNegotiator(catalog, fetcher, driver, names, log)
	dispatcher := printing.NewDispatcher(negotiator, driver, t.TempDir(), log)

	f.settings = filepath.Join(t.TempDir(), "settings.json")
	store := settings.NewStore(f.settings, log)

	f.stream = &fakeStream{
		in:   make(chan *printerpb.PrinterConnectorServerMessage, 4),
		sent: make(chan *printerpb.PrinterConnectorClientMessage, 64),
	}

	dial := func(ctx context.Context) (Stream, error) {
		md, _ := metadata.FromOutgoingContext(ctx)
		select {
		case f.dialed <- md:
		default:
		}
		f.stream.ctx = ctx
		return f.stream, nil
	}

	if cfg.Printer == "" {
		cfg.Printer = printer.Name
	}

	cfg.Space = "space-1"
	cfg.Token = "secret"
	cfg.StateInterval = 10 * time.Millisecond
	cfg.JobInterval = 10 * time.Millisecond

	f.relay = New(cfg, dial, dispatcher, store, driver, log)

	return f
}

// start runs the relay and greets it, the returned function stops it.
func (f *fixture) start(t *testing.T) func() {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- f.relay.Run(ctx)
	}()

	f.stream.in <- hello()

	return func() {
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("relay did not stop")
		}
	}
}

func (f *fixture) send(job *printerpb.Job) {
	f.stream.in <- &printerpb.PrinterConnectorServerMessage{
		Message: &printerpb.PrinterConnectorServerMessage_Print_{
			Print: &printerpb.PrinterConnectorServerMessage_Print{Job: job},
		},
	}
}

func (f *fixture) job(path string, age time.Duration) *printerpb.Job {
	return &printerpb.Job{
		DocumentUrl: f.docs.URL + path,
		CreatedAt:   timestamppb.New(time.Now().Add(-age)),
	}
}

// report waits for the next job report, skipping printer status messages.
func (f *fixture) report(t *testing.T) printerpb.Job_Status {
	t.Helper()

	timeout := time.After(5 * time.Second)

	for {
		select {
		case msg := <-f.stream.sent:
			if report := msg.GetReport(); report != nil {
				return report.GetStatus()
			}
		case <-timeout:
			t.Fatal("no job report received")
			return 0
		}
	}
}

// status waits for the next printer status message.
func (f *fixture) status(t *testing.T) printerpb.Printer_Status {
	t.Helper()

	timeout := time.After(5 * time.Second)

	for {
		select {
		case msg := <-f.stream.sent:
			if status := msg.GetStatus(); status != nil {
				return status.GetStatus()
			}
		case <-timeout:
			t.Fatal("no printer status received")
			return 0
		}
	}
}

func hello() *printerpb.PrinterConnectorServerMessage {
	return &printerpb.PrinterConnectorServerMessage{
		Message: &printerpb.PrinterConnectorServerMessage_Hello_{
			Hello: &printerpb.PrinterConnectorServerMessage_Hello{},
		},
	}
}

func laserJet() *ipptest.Printer {
	return &ipptest.Printer{
		Name:           "HP LaserJet",
		Orientations:   []int{3, 4},
		MediaSupported: []string{"iso_a4_210x297mm"},
	}
}

func TestRelay_PrintsWithDefaultSettings(t *testing.T) {
	f := newFixture(t, Config{JobTTL: time.Minute}, laserJet())

	require.NoError(t, os.WriteFile(f.settings, []byte(`{"printer":"Somewhere Else","orientation":"landscape"}`), 0o600))

	stop := f.start(t)
	defer stop()

	md := <-f.dialed
	assert.Equal(t, []string{"Bearer secret"}, md.Get("authorization"))
	assert.Equal(t, []string{"space-1"}, md.Get("space-id"))

	f.send(f.job("/document.pdf", time.Second))

	assert.Equal(t, printerpb.Job_COMPLETE, f.report(t))

	jobs := f.server.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "HP LaserJet", jobs[0].Printer)
	assert.Equal(t, document, jobs[0].Document)

	var orientation goipp.Attribute
	for _, attr := range jobs[0].Attributes {
		if attr.Name == "orientation-requested" {
			orientation = attr
		}
	}
	require.NotEmpty(t, orientation.Values)
	assert.Equal(t, goipp.Integer(4), orientation.Values[0].V)
}

func TestRelay_PrintsWithoutDefaultSettings(t *testing.T) {
	f := newFixture(t, Config{}, laserJet())

	stop := f.start(t)
	defer stop()

	f.send(f.job("/document.pdf", time.Second))

	assert.Equal(t, printerpb.Job_COMPLETE, f.report(t))
	assert.Len(t, f.server.Jobs(), 1)
}

func TestRelay_CancelsJobs(t *testing.T) {
	aborted := laserJet()
	aborted.JobState = int(ipp.JobAborted)

	tests := []struct {
		name     string
		printer  *ipptest.Printer
		settings string
		path     string
		age      time.Duration
		printed  int
	}{
		{name: "expired", printer: laserJet(), path: "/document.pdf", age: time.Hour},
		{name: "download failure", printer: laserJet(), path: "/missing.pdf"},
		{name: "unsupported settings", printer: laserJet(), settings: `{"printer":"HP LaserJet","orientation":"reverse_portrait"}`, path: "/document.pdf"},
		{name: "aborted by spooler", printer: aborted, path: "/document.pdf", printed: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{JobTTL: 5 * time.Minute}, tt.printer)

			if tt.settings != "" {
				require.NoError(t, os.WriteFile(f.settings, []byte(tt.settings), 0o600))
			}

			stop := f.start(t)
			defer stop()

			f.send(f.job(tt.path, tt.age))

			assert.Equal(t, printerpb.Job_CANCELLED, f.report(t))
			assert.Len(t, f.server.Jobs(), tt.printed)
		})
	}
}

func TestRelay_JobTimeout(t *testing.T) {
	printer := laserJet()
	printer.JobState = int(ipp.JobProcessing)

	f := newFixture(t, Config{JobTimeout: 50 * time.Millisecond}, printer)

	stop := f.start(t)
	defer stop()

	f.send(f.job("/document.pdf", 0))

	assert.Equal(t, printerpb.Job_COMPLETE, f.report(t))
	assert.GreaterOrEqual(t, f.server.Count(goipp.OpGetJobAttributes), 1)
}

func TestRelay_ReportsPrinterState(t *testing.T) {
	tests := []struct {
		state  int
		status printerpb.Printer_Status
	}{
		{3, printerpb.Printer_READY},
		{4, printerpb.Printer_BUSY},
		{5, printerpb.Printer_OFFLINE},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			printer := laserJet()
			printer.State = tt.state

			f := newFixture(t, Config{}, printer)

			stop := f.start(t)
			defer stop()

			assert.Equal(t, tt.status, f.status(t))
		})
	}
}

func TestRelay_UnknownPrinterIsOffline(t *testing.T) {
	f := newFixture(t, Config{Printer: "Gone"}, laserJet())

	stop := f.start(t)
	defer stop()

	assert.Equal(t, printerpb.Printer_OFFLINE, f.status(t))
}

func TestRelay_SessionRequiresHello(t *testing.T) {
	f := newFixture(t, Config{}, laserJet())

	f.stream.in <- &printerpb.PrinterConnectorServerMessage{}

	err := f.relay.session(context.Background())

	assert.ErrorContains(t, err, "unexpected message")
}

func TestRelay_SessionEndsWhenServerCloses(t *testing.T) {
	f := newFixture(t, Config{}, laserJet())

	f.stream.in <- hello()
	close(f.stream.in)

	assert.NoError(t, f.relay.session(context.Background()))
}

func TestMessages(t *testing.T) {
	status, ok := printerStatus(ipp.PrinterIdle)
	assert.True(t, ok)
	assert.Equal(t, printerpb.Printer_READY, statusMessage(status).GetStatus().GetStatus())

	_, ok = printerStatus(ipp.PrinterUnknown)
	assert.False(t, ok)

	assert.Equal(t, printerpb.Job_COMPLETE, reportMessage(jobStatus(ipp.JobCompleted)).GetReport().GetStatus())
	assert.Equal(t, printerpb.Job_CANCELLED, jobStatus(ipp.JobCanceled))
	assert.Equal(t, printerpb.Job_CANCELLED, jobStatus(ipp.JobAborted))
}
