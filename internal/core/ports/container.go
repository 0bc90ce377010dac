package ports

import (
	"context"
	"encoding/json"

	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
)

// ContainerEngine defines the lifecycle operations run against one engine host.
// address is the engine base address; handle is the id returned by Deploy.
// Implementations hold no per-handle state, so callers serialize operations
// on the same handle themselves.
type ContainerEngine interface {
	ListContainers(ctx context.Context, address string) (json.RawMessage, error)
	Deploy(ctx context.Context, session Session, ec domain.ExecContext, req domain.DeployRequest) (domain.DeployedInstance, error)
	Start(ctx context.Context, address, handle string) (string, error)
	Stop(ctx context.Context, address, handle string) (string, error)
	Destroy(ctx context.Context, session Session, ec domain.ExecContext, handle string) (string, error)
	Inspect(ctx context.Context, address, handle string) (domain.ContainerState, error)
	FetchLogs(ctx context.Context, address, handle string) ([]byte, error)
	ResolveNetworkBinding(ctx context.Context, session Session, ec domain.ExecContext, handle string) (domain.NetworkBinding, error)
}
