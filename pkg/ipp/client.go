package ipp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/OpenPrinting/goipp"
)

// StatusError is returned when the spooler answers with a non-successful IPP status.
type StatusError struct {
	Status goipp.Status
}

func (e *StatusError) Error() string {
	return e.Status.String()
}

type Option func(*Client)

// WithUsername sets requesting-user-name sent with job operations.
func WithUsername(username string) Option {
	return func(c *Client) {
		c.username = username
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

type Client struct {
	uri      string
	username string
	charset  string
	language string
	http     *http.Client
}

func New(uri string, opts ...Option) *Client {
	c := &Client{
		uri:      uri,
		username: "direct-printing",
		charset:  "utf-8",
		language: "en-US",
		http:     http.DefaultClient,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) request(op goipp.Op) *goipp.Message {
	in := goipp.NewRequest(goipp.DefaultVersion, op, 1)
	in.Operation.Add(goipp.MakeAttribute("attributes-charset", goipp.TagCharset, goipp.String(c.charset)))
	in.Operation.Add(goipp.MakeAttribute("attributes-natural-language", goipp.TagLanguage, goipp.String(c.language)))
	in.Operation.Add(goipp.MakeAttribute("printer-uri", goipp.TagURI, goipp.String(c.uri)))
	return in
}

// Printers lists the queues of a CUPS server (CUPS-Get-Printers). The client URI must point to the server root.
func (c *Client) Printers(ctx context.Context) ([]*PrinterAttributes, error) {
	in := c.request(goipp.OpCupsGetPrinters)
	in.Operation.Add(requestedAttributes("printer-name", "printer-info", "printer-state", "printer-state-reasons", "printer-uri-supported"))

	out, err := c.SendRequest(ctx, in, nil)
	if err != nil {
		return nil, err
	}

	var printers []*PrinterAttributes

	// one printer group per queue, cupsd does not start a group with printer-name
	for _, group := range out.Groups {
		if group.Tag != goipp.TagPrinterGroup || len(group.Attrs) == 0 {
			continue
		}

		p, err := parsePrinterAttributes(group.Attrs)
		if err != nil {
			return nil, err
		}

		printers = append(printers, p)
	}

	return printers, nil
}

func (c *Client) PrinterAttributes(ctx context.Context) (*PrinterAttributes, error) {
	in := c.request(goipp.OpGetPrinterAttributes)
	in.Operation.Add(requestedAttributes("all", "media-col-database"))

	out, err := c.SendRequest(ctx, in, nil)
	if err != nil {
		return nil, err
	}

	return parsePrinterAttributes(out.Printer)
}

func (c *Client) JobAttributes(ctx context.Context, job int) (*JobAttributes, error) {
	in := c.request(goipp.OpGetJobAttributes)
	in.Operation.Add(goipp.MakeAttribute("job-id", goipp.TagInteger, goipp.Integer(job)))

	out, err := c.SendRequest(ctx, in, nil)
	if err != nil {
		return nil, err
	}

	attrs := &JobAttributes{}

	for _, attr := range out.Job {
		if len(attr.Values) == 0 {
			continue
		}

		switch attr.Name {
		case "job-state":
			v, ok := attr.Values[0].V.(goipp.Integer)
			if !ok {
				return nil, malformed(attr)
			}
			attrs.State = JobState(v)
		case "job-state-reasons":
			attrs.StateReason = attr.Values[0].V.String()
		}
	}

	return attrs, nil
}

// ValidateJob asks the printer whether it would accept a job with the given job template attributes.
func (c *Client) ValidateJob(ctx context.Context, job goipp.Attributes) error {
	in := c.request(goipp.OpValidateJob)
	in.Operation.Add(goipp.MakeAttribute("requesting-user-name", goipp.TagName, goipp.String(c.username)))
	in.Job = append(in.Job, job...)

	_, err := c.SendRequest(ctx, in, nil)
	return err
}

func (c *Client) PrintJob(ctx context.Context, filename, mime string, job goipp.Attributes, reader io.Reader) (int, error) {
	in := c.request(goipp.OpPrintJob)
	in.Operation.Add(goipp.MakeAttribute("requesting-user-name", goipp.TagName, goipp.String(c.username)))
	in.Operation.Add(goipp.MakeAttribute("job-name", goipp.TagName, goipp.String(filename)))
	in.Operation.Add(goipp.MakeAttribute("document-format", goipp.TagMimeType, goipp.String(mime)))
	in.Job = append(in.Job, job...)

	out, err := c.SendRequest(ctx, in, reader)
	if err != nil {
		return -1, err
	}

	for _, attr := range out.Job {
		if len(attr.Values) == 0 {
			continue
		}

		switch attr.Name {
		case "job-id":
			if v, ok := attr.Values[0].V.(goipp.Integer); ok {
				return int(v), nil
			}
		}
	}

	return -1, errors.New("no job-id in response")
}

func (c *Client) PrintJobFile(ctx context.Context, name, filename, mime string, job goipp.Attributes) (int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return -1, fmt.Errorf("open file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	if name == "" {
		name = filepath.Base(filename)
	}

	return c.PrintJob(ctx, name, mime, job, file)
}

func (c *Client) SendRequest(ctx context.Context, in *goipp.Message, payload io.Reader) (*goipp.Message, error) {
	message, err := in.EncodeBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	uri, err := url.Parse(c.uri)
	if err != nil {
		return nil, fmt.Errorf("invalid printer URI %q: %v", c.uri, err)
	}

	if uri.Scheme == "ipp" {
		uri.Scheme = "http"
	}

	if uri.Scheme == "ipps" {
		uri.Scheme = "https"
	}

	var body io.Reader = bytes.NewBuffer(message)
	if payload != nil {
		body = io.MultiReader(body, payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if uri.User != nil {
		pwd, _ := uri.User.Password()
		req.SetBasicAuth(uri.User.Username(), pwd)
	}

	req.Header.Set("Content-Type", goipp.ContentType)
	req.Header.Set("Accept", goipp.ContentType)
	req.Header.Set("Accept-Encoding", "gzip, deflate, identity")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("request failed: status code %v", resp.StatusCode)
	}

	out := goipp.Message{}
	if err := out.Decode(resp.Body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if goipp.Status(out.Code) != goipp.StatusOk {
		return nil, &StatusError{Status: goipp.Status(out.Code)}
	}

	return &out, nil
}

func requestedAttributes(names ...string) goipp.Attribute {
	attr := goipp.MakeAttribute("requested-attributes", goipp.TagKeyword, goipp.String(names[0]))
	for _, name := range names[1:] {
		attr.Values.Add(goipp.TagKeyword, goipp.String(name))
	}

	return attr
}

func malformed(attr goipp.Attribute) error {
	return fmt.Errorf("malformed attribute %q: unexpected %s value", attr.Name, attr.Values[0].T)
}
