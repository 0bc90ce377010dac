package ports

import (
	"context"

	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
)

// SessionProvider hands out platform sessions. One session is opened per
// logical operation and closed on every exit path.
type SessionProvider interface {
	Open(ctx context.Context) (Session, error)
}

// Session is the hosting platform's inventory and messaging surface.
type Session interface {
	// WriteMessage appends free text to the reservation's output.
	WriteMessage(ctx context.Context, reservationID, message string) error

	FindResources(ctx context.Context, attribute, value string) ([]domain.Resource, error)
	// GetResource returns a *domain.NotFoundError when name is unknown.
	GetResource(ctx context.Context, name string) (domain.Resource, error)
	SetAttributes(ctx context.Context, name string, updates []domain.AttributeUpdate) error
	UpdateAddress(ctx context.Context, name, address string) error
	SetLiveStatus(ctx context.Context, name, status string) error
	DeleteResource(ctx context.Context, name string) error

	Close() error
}
