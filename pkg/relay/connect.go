package relay

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	printerpb "github.com/eolymp/go-sdk/eolymp/printer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Stream is the bidirectional connector stream to the printing server.
type Stream interface {
	Send(*printerpb.PrinterConnectorClientMessage) error
	Recv() (*printerpb.PrinterConnectorServerMessage, error)
	CloseSend() error
}

// Dialer opens a new connector stream. ctx carries the authentication metadata.
type Dialer func(ctx context.Context) (Stream, error)

// Connect creates a connector client for the printing server at uri. Plain http URIs connect without TLS.
func Connect(uri string) (printerpb.PrinterConnectorClient, error) {
	link, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse server URL %q: %v", uri, err)
	}

	port, _ := strconv.Atoi(link.Port())
	if port == 0 {
		if link.Scheme == "http" {
			port = 80
		} else {
			port = 443
		}
	}

	creds := credentials.NewClientTLSFromCert(nil, link.Hostname())
	if link.Scheme == "http" {
		creds = insecure.NewCredentials()
	}

	conn, err := grpc.NewClient(fmt.Sprintf("%v:%v", link.Hostname(), port), grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to printing server: %w", err)
	}

	return printerpb.NewPrinterConnectorClient(conn), nil
}

// Dial adapts a connector client to a Dialer.
func Dial(cli printerpb.PrinterConnectorClient) Dialer {
	return func(ctx context.Context) (Stream, error) {
		return cli.Connect(ctx)
	}
}
