package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
	"github.com/melih/lighthouse-dockerhost/internal/core/ports"
)

// Lifecycle is the caller of the engine adapter. It opens one platform
// session per operation and applies what the adapter reports.
type Lifecycle struct {
	engine   ports.ContainerEngine
	sessions ports.SessionProvider
	logger   *slog.Logger
}

func NewLifecycle(engine ports.ContainerEngine, sessions ports.SessionProvider, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{engine: engine, sessions: sessions, logger: logger}
}

// withSession runs fn with a fresh session and releases it on every path.
func (s *Lifecycle) withSession(ctx context.Context, fn func(ports.Session) error) (err error) {
	session, err := s.sessions.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open platform session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close platform session: %w", cerr))
		}
	}()
	return fn(session)
}

func (s *Lifecycle) List(ctx context.Context, ec domain.ExecContext) (json.RawMessage, error) {
	return s.engine.ListContainers(ctx, ec.Host.Address)
}

func (s *Lifecycle) Deploy(ctx context.Context, ec domain.ExecContext, req domain.DeployRequest) (domain.DeployedInstance, error) {
	var instance domain.DeployedInstance
	err := s.withSession(ctx, func(session ports.Session) error {
		var err error
		instance, err = s.engine.Deploy(ctx, session, ec, req)
		return err
	})
	return instance, err
}

// Start powers the target on and marks it online.
func (s *Lifecycle) Start(ctx context.Context, ec domain.ExecContext, handle string) (string, error) {
	return s.power(ctx, ec, handle, domain.OpStart)
}

// Stop powers the target off and marks it offline.
func (s *Lifecycle) Stop(ctx context.Context, ec domain.ExecContext, handle string) (string, error) {
	return s.power(ctx, ec, handle, domain.OpStop)
}

func (s *Lifecycle) power(ctx context.Context, ec domain.ExecContext, handle string, op domain.Operation) (string, error) {
	var log string
	err := s.withSession(ctx, func(session ports.Session) error {
		tracked, err := s.checkTransition(ctx, session, ec.Target.Name, op)
		if err != nil {
			return err
		}

		if op == domain.OpStart {
			log, err = s.engine.Start(ctx, ec.Host.Address, handle)
		} else {
			log, err = s.engine.Stop(ctx, ec.Host.Address, handle)
		}
		if err != nil || !tracked {
			return err
		}

		status := domain.LiveStatusOnline
		if op == domain.OpStop {
			status = domain.LiveStatusOffline
		}
		return session.SetLiveStatus(ctx, ec.Target.Name, status)
	})
	return log, err
}

// checkTransition rejects op when the inventory tracks the target in a state
// that does not allow it. Untracked targets are not checked.
func (s *Lifecycle) checkTransition(ctx context.Context, session ports.Session, target string, op domain.Operation) (bool, error) {
	if target == "" {
		return false, nil
	}
	res, err := session.GetResource(ctx, target)
	if domain.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read resource %s: %w", target, err)
	}
	if _, err := domain.Transition(domain.StateFromLiveStatus(res.LiveStatus), op); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Lifecycle) Destroy(ctx context.Context, ec domain.ExecContext, handle string) (string, error) {
	var log string
	err := s.withSession(ctx, func(session ports.Session) error {
		var err error
		log, err = s.engine.Destroy(ctx, session, ec, handle)
		return err
	})
	return log, err
}

func (s *Lifecycle) Inspect(ctx context.Context, ec domain.ExecContext, handle string) (domain.ContainerState, error) {
	return s.engine.Inspect(ctx, ec.Host.Address, handle)
}

func (s *Lifecycle) Logs(ctx context.Context, ec domain.ExecContext, handle string) ([]byte, error) {
	return s.engine.FetchLogs(ctx, ec.Host.Address, handle)
}

// Resolve returns the network binding without applying it.
func (s *Lifecycle) Resolve(ctx context.Context, ec domain.ExecContext, handle string) (domain.NetworkBinding, error) {
	var binding domain.NetworkBinding
	err := s.withSession(ctx, func(session ports.Session) error {
		var err error
		binding, err = s.engine.ResolveNetworkBinding(ctx, session, ec, handle)
		return err
	})
	return binding, err
}

// RefreshIP resolves the target's network binding and writes it to the
// inventory: port attributes, address and live status.
func (s *Lifecycle) RefreshIP(ctx context.Context, ec domain.ExecContext, handle string) (domain.NetworkBinding, error) {
	if ec.Target.Name == "" {
		return domain.NetworkBinding{}, &domain.ValidationError{Field: "target", Reason: "refresh-ip needs the deployed app resource name"}
	}
	var binding domain.NetworkBinding
	err := s.withSession(ctx, func(session ports.Session) error {
		var err error
		binding, err = s.engine.ResolveNetworkBinding(ctx, session, ec, handle)
		if err != nil {
			return err
		}
		if len(binding.Attributes) > 0 {
			if err := session.SetAttributes(ctx, ec.Target.Name, binding.Attributes); err != nil {
				return err
			}
		}
		if err := session.UpdateAddress(ctx, ec.Target.Name, binding.Address); err != nil {
			return err
		}
		return session.SetLiveStatus(ctx, ec.Target.Name, domain.LiveStatusOnline)
	})
	if err == nil {
		s.logger.Info("network binding refreshed", "resource", ec.Target.Name, "address", binding.Address, "node_ip", binding.NodeIP)
	}
	return binding, err
}
