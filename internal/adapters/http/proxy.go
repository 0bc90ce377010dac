package http

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
)

// ProxyHandler forwards requests to a deployed container's web port.
type ProxyHandler struct {
	service Lifecycle
	host    domain.HostResource
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(service Lifecycle, host domain.HostResource) *ProxyHandler {
	return &ProxyHandler{service: service, host: host}
}

// ProxyRequest handles /proxy/:id/* by resolving the container's network
// binding and reverse proxying to address:WWW_Port.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	id := c.Params("id")
	ec := domain.ExecContext{
		ReservationID: c.Get(ReservationHeader),
		Host:          h.host,
		Target:        domain.Target{UID: id},
	}

	binding, err := h.service.Resolve(c.UserContext(), ec, id)
	if err != nil {
		return respondError(c, err)
	}
	port, ok := binding.Attribute(domain.AttrWWWPort)
	if !ok || port == "" {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("Container '%s' publishes no web port", id))
	}

	remote := &url.URL{Scheme: "http", Host: net.JoinHostPort(hostname(binding.Address), port)}
	path := "/" + c.Params("*")

	proxy := httputil.NewSingleHostReverseProxy(remote)

	// Rewrite Host and strip the /proxy/:id prefix
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = remote.Host
		req.URL.Path = path
		req.URL.RawPath = ""
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(fmt.Sprintf("Proxy Info: target=%s error=%v", remote.Host, err)))
	}

	return adaptor.HTTPHandler(proxy)(c)
}

// hostname extracts the host part of an engine or resource address.
// Socket addresses resolve to the loopback interface.
func hostname(address string) string {
	if strings.Contains(address, "://") {
		u, err := url.Parse(address)
		if err == nil && u.Hostname() != "" && u.Scheme != "unix" && u.Scheme != "npipe" {
			return u.Hostname()
		}
		return "127.0.0.1"
	}
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return address
}
