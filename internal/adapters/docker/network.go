package docker

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
	"github.com/melih/lighthouse-dockerhost/internal/core/ports"
)

const (
	portSSH     nat.Port = "22/tcp"
	portHTTP    nat.Port = "80/tcp"
	portHTTPAlt nat.Port = "8000/tcp"
	portHTTPDev nat.Port = "8080/tcp"
)

// wwwPorts are checked in order; the first one the engine published wins.
var wwwPorts = []nat.Port{portHTTP, portHTTPAlt, portHTTPDev}

// ResolveNetworkBinding works out where a deployed container can be reached.
// The node IP is replaced by the address of an inventory resource claiming it
// as its private IP, if any. Nothing is written back; applying the result is
// up to the caller.
func (a *Adapter) ResolveNetworkBinding(ctx context.Context, session ports.Session, ec domain.ExecContext, handle string) (domain.NetworkBinding, error) {
	state, err := a.Inspect(ctx, ec.Host.Address, handle)
	if err != nil {
		return domain.NetworkBinding{}, err
	}

	binding := domain.NetworkBinding{
		NodeIP:     state.Node.IP,
		Address:    ec.Host.Address,
		Attributes: PortAttributes(state),
	}

	if state.Node.IP != "" && session != nil {
		matches, err := session.FindResources(ctx, domain.AttrPrivateIP, state.Node.IP)
		if err != nil {
			return domain.NetworkBinding{}, fmt.Errorf("failed to find resources by private ip: %w", err)
		}
		if len(matches) > 0 {
			binding.Address = matches[0].Address
		}
	}
	return binding, nil
}

// PortAttributes maps the engine's published ports to inventory attributes.
func PortAttributes(state domain.ContainerState) []domain.AttributeUpdate {
	var updates []domain.AttributeUpdate
	if hostPort, ok := state.HostPort(portSSH); ok {
		updates = append(updates, domain.AttributeUpdate{Name: domain.AttrSSHPort, Value: hostPort})
	}
	for _, port := range wwwPorts {
		if hostPort, ok := state.HostPort(port); ok {
			updates = append(updates, domain.AttributeUpdate{Name: domain.AttrWWWPort, Value: hostPort})
			break
		}
	}
	return updates
}
