package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
	"github.com/melih/lighthouse-dockerhost/internal/core/ports"
)

// Adapter implements ports.ContainerEngine over the engine's REST API.
// It keeps no state between calls; every call dials the address it is given.
type Adapter struct {
	timeout time.Duration
	logger  *slog.Logger
}

var _ ports.ContainerEngine = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithTimeout bounds each engine round trip.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter creates a new engine adapter
func NewAdapter(opts ...Option) *Adapter {
	a := &Adapter{timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) dial(address string) (*engineClient, error) {
	return newEngineClient(address, a.timeout)
}

// ListContainers returns the engine's list of active containers as-is.
func (a *Adapter) ListContainers(ctx context.Context, address string) (json.RawMessage, error) {
	c, err := a.dial(address)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodGet, "/containers/json", nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, &domain.EngineError{Op: "list", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	if !json.Valid(resp.Body) {
		return nil, &domain.EngineError{Op: "list", StatusCode: resp.StatusCode, Reason: "response is not valid json"}
	}
	return json.RawMessage(resp.Body), nil
}

type createResponse struct {
	ID string `json:"Id"`
}

// Deploy creates a container from req and reports progress to the
// reservation before sending and after the engine answers.
func (a *Adapter) Deploy(ctx context.Context, session ports.Session, ec domain.ExecContext, req domain.DeployRequest) (domain.DeployedInstance, error) {
	body, err := BuildCreatePayload(req.Image, req.Env, req.Ports)
	if err != nil {
		return domain.DeployedInstance{}, err
	}
	c, err := a.dial(ec.Host.Address)
	if err != nil {
		return domain.DeployedInstance{}, err
	}

	a.notify(ctx, session, ec, "sending: "+string(body))

	resp, err := c.do(ctx, http.MethodPost, "/containers/create", nil, body)
	if err != nil {
		a.notify(ctx, session, ec, "error: "+err.Error())
		return domain.DeployedInstance{}, err
	}

	a.notify(ctx, session, ec, "response: "+resp.log())

	if !resp.ok() {
		return domain.DeployedInstance{}, &domain.EngineError{Op: "create", StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	var created createResponse
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return domain.DeployedInstance{}, &domain.EngineError{Op: "create", StatusCode: resp.StatusCode, Body: string(resp.Body), Reason: "malformed create response"}
	}
	if strings.TrimSpace(created.ID) == "" {
		return domain.DeployedInstance{}, &domain.EngineError{Op: "create", StatusCode: resp.StatusCode, Body: string(resp.Body), Reason: "create response has no Id"}
	}

	appName := strings.TrimSpace(req.AppName)
	if appName == "" {
		appName = domain.AppNameFromImage(req.Image)
	}
	instance := domain.DeployedInstance{
		EngineContainerID: created.ID,
		InstanceName:      domain.NewInstanceName(appName),
		OwnerResourceName: ec.Host.Name,
	}
	a.logger.Info("container created",
		"id", instance.EngineContainerID,
		"name", instance.InstanceName,
		"image", req.Image,
		"host", ec.Host.Name)
	return instance, nil
}

// notify writes to the reservation output. Messaging is for operator
// visibility only, so its failures are logged and never fail the deploy.
func (a *Adapter) notify(ctx context.Context, session ports.Session, ec domain.ExecContext, msg string) {
	if session == nil {
		return
	}
	if err := session.WriteMessage(ctx, ec.ReservationID, msg); err != nil {
		a.logger.Warn("failed to write reservation message", "reservation", ec.ReservationID, "err", err)
	}
}

// Start powers on the container.
func (a *Adapter) Start(ctx context.Context, address, handle string) (string, error) {
	return a.power(ctx, address, handle, "start")
}

// Stop powers off the container.
func (a *Adapter) Stop(ctx context.Context, address, handle string) (string, error) {
	return a.power(ctx, address, handle, "stop")
}

func (a *Adapter) power(ctx context.Context, address, handle, action string) (string, error) {
	c, err := a.dial(address)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, http.MethodPost, containerPath(handle, "/"+action), nil, nil)
	if err != nil {
		return "", err
	}
	log := resp.log()
	// 304: already in the requested state
	if resp.ok() || resp.StatusCode == http.StatusNotModified {
		a.logger.Debug("container "+action, "id", handle, "status", resp.StatusCode)
		return log, nil
	}
	return log, statusError(action, handle, resp)
}

// Destroy stops and deletes the container, then removes the deployed-app
// resource from the inventory. A failed stop does not prevent the delete;
// failures of the delete and of the inventory removal are returned.
func (a *Adapter) Destroy(ctx context.Context, session ports.Session, ec domain.ExecContext, handle string) (string, error) {
	c, err := a.dial(ec.Host.Address)
	if err != nil {
		return "", err
	}

	var logs []string
	resp, err := c.do(ctx, http.MethodPost, containerPath(handle, "/stop"), nil, nil)
	switch {
	case err != nil:
		logs = append(logs, "stop: "+err.Error())
		a.logger.Warn("stop before delete failed", "id", handle, "err", err)
	default:
		logs = append(logs, resp.log())
		if !resp.ok() && resp.StatusCode != http.StatusNotModified {
			a.logger.Warn("stop before delete failed", "id", handle, "status", resp.StatusCode)
		}
	}

	var errs []error
	resp, err = c.do(ctx, http.MethodDelete, containerPath(handle, ""), nil, nil)
	switch {
	case err != nil:
		logs = append(logs, "delete: "+err.Error())
		errs = append(errs, err)
	case !resp.ok():
		logs = append(logs, resp.log())
		errs = append(errs, statusError("delete", handle, resp))
	default:
		logs = append(logs, resp.log())
	}

	if session != nil && ec.Target.Name != "" {
		err := session.DeleteResource(ctx, ec.Target.Name)
		switch {
		case domain.IsNotFound(err):
			a.logger.Debug("resource already removed", "resource", ec.Target.Name)
		case err != nil:
			errs = append(errs, fmt.Errorf("failed to delete resource %s: %w", ec.Target.Name, err))
		}
	}

	log := strings.Join(logs, "\n")
	if len(errs) > 0 {
		return log, errors.Join(errs...)
	}
	a.logger.Info("container destroyed", "id", handle, "resource", ec.Target.Name)
	return log, nil
}

// Inspect returns the engine's description of the container.
func (a *Adapter) Inspect(ctx context.Context, address, handle string) (domain.ContainerState, error) {
	c, err := a.dial(address)
	if err != nil {
		return domain.ContainerState{}, err
	}
	resp, err := c.do(ctx, http.MethodGet, containerPath(handle, "/json"), nil, nil)
	if err != nil {
		return domain.ContainerState{}, err
	}
	if !resp.ok() {
		return domain.ContainerState{}, statusError("inspect", handle, resp)
	}
	var state domain.ContainerState
	if err := json.Unmarshal(resp.Body, &state); err != nil {
		return domain.ContainerState{}, &domain.EngineError{Op: "inspect", StatusCode: resp.StatusCode, Body: string(resp.Body), Reason: "malformed inspect response"}
	}
	state.Raw = json.RawMessage(resp.Body)
	return state, nil
}

// FetchLogs returns the container's stdout log stream as sent by the engine.
func (a *Adapter) FetchLogs(ctx context.Context, address, handle string) ([]byte, error) {
	c, err := a.dial(address)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodGet, containerPath(handle, "/logs"), url.Values{"stdout": {"1"}}, nil)
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, statusError("logs", handle, resp)
	}
	return resp.Body, nil
}

// DemuxLogs strips the stream headers the engine adds to logs of containers
// started without a TTY.
func DemuxLogs(raw []byte) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to demultiplex logs: %w", err)
	}
	stdout.Write(stderr.Bytes())
	return stdout.Bytes(), nil
}

func statusError(op, handle string, resp response) error {
	if resp.StatusCode == http.StatusNotFound {
		return &domain.NotFoundError{ID: handle}
	}
	return &domain.EngineError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(resp.Body))}
}
