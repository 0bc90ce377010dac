package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docker/docker/client"
	"github.com/docker/go-connections/sockets"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
)

// DefaultTimeout bounds every engine round trip when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// endpoint is a parsed engine address.
type endpoint struct {
	proto string // dial protocol: tcp, unix or npipe
	addr  string // dial address
	base  *url.URL
}

// parseEngineAddress accepts http://, https://, tcp://, unix:// and npipe://
// addresses. A bare host:port is treated as tcp://host:port.
func parseEngineAddress(address string) (endpoint, error) {
	address = strings.TrimRight(strings.TrimSpace(address), "/")
	if address == "" {
		return endpoint{}, &domain.ValidationError{Field: "engine address", Value: address, Reason: "must not be empty"}
	}
	if !strings.Contains(address, "://") {
		address = "tcp://" + address
	}

	hostURL, err := client.ParseHostURL(address)
	if err != nil {
		return endpoint{}, &domain.ValidationError{Field: "engine address", Value: address, Reason: err.Error()}
	}

	switch hostURL.Scheme {
	case "http", "https":
		parsed, err := url.Parse(address)
		if err != nil || parsed.Host == "" {
			return endpoint{}, &domain.ValidationError{Field: "engine address", Value: address, Reason: "missing host"}
		}
		return endpoint{
			proto: "tcp",
			addr:  parsed.Host,
			base:  &url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: parsed.Path},
		}, nil
	case "tcp":
		return endpoint{
			proto: "tcp",
			addr:  hostURL.Host,
			base:  &url.URL{Scheme: "http", Host: hostURL.Host, Path: hostURL.Path},
		}, nil
	case "unix", "npipe":
		// the host part is ignored when dialing a socket
		return endpoint{
			proto: hostURL.Scheme,
			addr:  hostURL.Host,
			base:  &url.URL{Scheme: "http", Host: "docker"},
		}, nil
	default:
		return endpoint{}, &domain.ValidationError{Field: "engine address", Value: address, Reason: "unsupported scheme " + hostURL.Scheme}
	}
}

// engineClient performs raw HTTP calls against one engine.
type engineClient struct {
	ep   endpoint
	http *http.Client
}

type response struct {
	StatusCode int
	Body       []byte
}

func (r response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// log renders the response the way operators see it: "<status>: <body>".
func (r response) log() string {
	return fmt.Sprintf("%d: %s", r.StatusCode, strings.TrimSpace(string(r.Body)))
}

func newEngineClient(address string, timeout time.Duration) (*engineClient, error) {
	ep, err := parseEngineAddress(address)
	if err != nil {
		return nil, err
	}
	tr := &http.Transport{DisableKeepAlives: true}
	if err := sockets.ConfigureTransport(tr, ep.proto, ep.addr); err != nil {
		return nil, fmt.Errorf("failed to configure engine transport: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &engineClient{
		ep:   ep,
		http: &http.Client{Transport: tr, Timeout: timeout},
	}, nil
}

func (c *engineClient) do(ctx context.Context, method, path string, query url.Values, body []byte) (response, error) {
	u := *c.ep.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return response{}, fmt.Errorf("failed to build engine request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	op := method + " " + path
	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, &domain.TransportError{Op: op, Err: err}
	}
	return response{StatusCode: resp.StatusCode, Body: data}, nil
}

func containerPath(handle string, suffix string) string {
	return "/containers/" + url.PathEscape(handle) + suffix
}
