// Package relay receives print jobs from the remote printing server and prints them on a local printer.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	printerpb "github.com/eolymp/go-sdk/eolymp/printer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/metadata"

	"github.com/eolymp/direct-printing/pkg/ipp"
	"github.com/eolymp/direct-printing/pkg/printing"
)

type Config struct {
	Space      string
	Token      string
	Printer    string
	JobTTL     time.Duration
	JobTimeout time.Duration

	// StateInterval and JobInterval are the spooler polling periods, 3s and 5s when zero.
	StateInterval time.Duration
	JobInterval   time.Duration
}

type Dispatcher interface {
	Dispatch(ctx context.Context, payload printing.Payload) (int, error)
}

type SettingsStore interface {
	Load() (printing.PrintSettings, error)
}

// Spooler reports queue and job states.
type Spooler interface {
	PrinterState(ctx context.Context, printer string) (ipp.PrinterState, error)
	JobState(ctx context.Context, printer string, job int) (ipp.JobState, error)
}

type Relay struct {
	cfg        Config
	dial       Dialer
	dispatcher Dispatcher
	store      SettingsStore
	spooler    Spooler
	http       *http.Client
	log        *zap.Logger
}

func New(cfg Config, dial Dialer, dispatcher Dispatcher, store SettingsStore, spooler Spooler, log *zap.Logger) *Relay {
	if cfg.StateInterval <= 0 {
		cfg.StateInterval = 3 * time.Second
	}

	if cfg.JobInterval <= 0 {
		cfg.JobInterval = 5 * time.Second
	}

	return &Relay{
		cfg:        cfg,
		dial:       dial,
		dispatcher: dispatcher,
		store:      store,
		spooler:    spooler,
		http:       &http.Client{Timeout: 5 * time.Minute},
		log:        log,
	}
}

// Run keeps a session with the server open until ctx is done, reconnecting with exponential backoff.
func (r *Relay) Run(ctx context.Context) error {
	backoff := time.Second / 2

	for {
		attempt := time.Now()

		err := r.session(ctx)

		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil:
		// a known error happening due to server IDLE timeout
		case strings.Contains(err.Error(), "stream terminated by RST_STREAM with error code: PROTOCOL_ERROR"):
			r.log.Info("Connection closed due to inactivity, reconnecting")
			continue
		default:
			r.log.Error("Relay session failed", zap.Error(err))

			backoff = min(backoff*2, 30*time.Second)
		}

		// connection was maintained for at least 5 seconds, reconnect right away
		if time.Since(attempt) > 5*time.Second {
			backoff = time.Second / 2
			continue
		}

		r.log.Info("Reconnecting", zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
	}
}

// sender serializes writes to the stream, grpc streams allow a single concurrent sender.
type sender struct {
	mu     sync.Mutex
	stream Stream
}

func (s *sender) Send(msg *printerpb.PrinterConnectorClientMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stream.Send(msg)
}

func (r *Relay) session(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := r.dial(metadata.AppendToOutgoingContext(ctx,
		"authorization", "Bearer "+url.PathEscape(r.cfg.Token),
		"space-id", r.cfg.Space,
	))
	if err != nil {
		return fmt.Errorf("failed to connect to printing server: %w", err)
	}

	defer func() {
		_ = stream.CloseSend()
	}()

	// wait for hello message before starting the routine
	msg, err := stream.Recv()
	if err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}

	if _, ok := msg.GetMessage().(*printerpb.PrinterConnectorServerMessage_Hello_); !ok {
		return fmt.Errorf("unexpected message: %T", msg.GetMessage())
	}

	r.log.Info("Connected to the server", zap.String("printer", r.cfg.Printer))

	eg, gctx := errgroup.WithContext(ctx)

	// unblock Recv once any routine stops
	stop := context.AfterFunc(gctx, cancel)
	defer stop()

	out := &sender{stream: stream}
	jobs := make(chan *printerpb.Job, 16)

	eg.Go(func() error {
		for {
			msg, err := stream.Recv()
			if err != nil {
				return fmt.Errorf("failed to receive response: %w", err)
			}

			m, ok := msg.GetMessage().(*printerpb.PrinterConnectorServerMessage_Print_)
			if !ok {
				continue
			}

			select {
			case jobs <- m.Print.GetJob():
			case <-gctx.Done():
				return nil
			}
		}
	})

	eg.Go(func() error {
		return r.watchPrinterState(gctx, out)
	})

	eg.Go(func() error {
		for {
			select {
			case job := <-jobs:
				if err := r.handle(gctx, out, job); err != nil {
					return err
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

func (r *Relay) watchPrinterState(ctx context.Context, out *sender) error {
	reported := ipp.PrinterUnknown

	for {
		state, err := r.spooler.PrinterState(ctx, r.cfg.Printer)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			r.log.Warn("Failed to get printer state", zap.String("printer", r.cfg.Printer), zap.Error(err))
			state = ipp.PrinterStopped
		}

		if status, ok := printerStatus(state); ok && state != reported {
			r.log.Info("Printer state changed", zap.String("printer", r.cfg.Printer), zap.Stringer("state", state))

			if err := out.Send(statusMessage(status)); err != nil {
				return fmt.Errorf("failed to report printer status: %w", err)
			}

			reported = state
		}

		select {
		case <-time.After(r.cfg.StateInterval):
		case <-ctx.Done():
			return nil
		}
	}
}

// handle prints one job and reports its outcome. Only failures to talk to the server are returned.
func (r *Relay) handle(ctx context.Context, out *sender, job *printerpb.Job) error {
	log := r.log.With(zap.String("document_url", job.GetDocumentUrl()))

	log.Info("Received print job")

	status := r.print(ctx, log, job)
	if ctx.Err() != nil {
		return nil
	}

	if err := out.Send(reportMessage(status)); err != nil {
		return fmt.Errorf("failed to report job status: %w", err)
	}

	return nil
}

func (r *Relay) print(ctx context.Context, log *zap.Logger, job *printerpb.Job) printerpb.Job_Status {
	if created := job.GetCreatedAt(); created != nil && r.cfg.JobTTL > 0 {
		if since := time.Since(created.AsTime()); since > r.cfg.JobTTL {
			log.Warn("Job is too old, skipping", zap.Duration("age", since))
			return printerpb.Job_CANCELLED
		}
	}

	document, err := r.download(ctx, job.GetDocumentUrl())
	if err != nil {
		log.Error("Failed to download document", zap.Error(err))
		return printerpb.Job_CANCELLED
	}

	settings, err := r.store.Load()
	if err != nil {
		log.Info("Printing without default settings", zap.Error(err))
		settings = printing.PrintSettings{}
	}

	settings.Printer = r.cfg.Printer

	id, err := r.dispatcher.Dispatch(ctx, printing.Payload{File: document, Settings: settings})
	if err != nil {
		log.Error("Failed to print document", zap.String("reason", printing.Message(err)), zap.Error(err))
		return printerpb.Job_CANCELLED
	}

	log.Info("Printing job added to the queue", zap.Int("job_id", id))

	state, err := r.follow(ctx, id)
	if err != nil {
		log.Warn("Stopped following job, assuming it completes", zap.Int("job_id", id), zap.Error(err))
		return printerpb.Job_COMPLETE
	}

	log.Info("Printing job finished", zap.Int("job_id", id), zap.Stringer("state", state))

	return jobStatus(state)
}

// follow polls the spooler until the job reaches a terminal state or JobTimeout passes.
func (r *Relay) follow(ctx context.Context, id int) (ipp.JobState, error) {
	if r.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.JobTimeout)
		defer cancel()
	}

	for {
		state, err := r.spooler.JobState(ctx, r.cfg.Printer, id)
		if err != nil {
			return state, fmt.Errorf("failed to get job state: %w", err)
		}

		if state.Terminal() {
			return state, nil
		}

		select {
		case <-time.After(r.cfg.JobInterval):
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

func (r *Relay) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download document: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("failed to download document: status code %v", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	if len(data) == 0 {
		return nil, errors.New("document is empty")
	}

	return data, nil
}
