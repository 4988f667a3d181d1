package ipp

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
)

// Printer is a network printer announced over mDNS.
type Printer struct {
	Name  string
	State PrinterState
	URI   string
}

// Find browses the local network for IPP printers until ctx is done. The returned channel is closed afterwards.
func Find(ctx context.Context) (<-chan *Printer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	printers := make(chan *Printer)
	discovery := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(printers)

		seen := map[string]bool{}
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-discovery:
				if !ok {
					return
				}

				if entry == nil || seen[entry.Instance] {
					continue
				}

				seen[entry.Instance] = true

				select {
				case printers <- ParseFindEntry(entry):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	if err := resolver.Browse(ctx, "_ipp._tcp", "local.", discovery); err != nil {
		return nil, fmt.Errorf("failed to browse: %w", err)
	}

	return printers, nil
}

func ParseFindEntry(entry *zeroconf.ServiceEntry) *Printer {
	attr := map[string]string{}
	for _, txt := range entry.Text {
		k, v, _ := strings.Cut(txt, "=")
		attr[k] = v
	}

	state, _ := strconv.Atoi(attr["printer-state"])

	local, _ := os.Hostname()
	hostname := strings.TrimSuffix(entry.HostName, ".")

	if hostname == local {
		hostname = "localhost"
	}

	path := attr["rp"]
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	uri := url.URL{
		Scheme: "ipp",
		Host:   fmt.Sprintf("%v:%v", hostname, strconv.Itoa(entry.Port)),
		Path:   path,
	}

	return &Printer{
		Name:  entry.Instance,
		State: PrinterState(state),
		URI:   uri.String(),
	}
}
