package zones

import (
	"context"
	"errors"

	"github.com/rustport/zorp/internal/domain"
)

// ErrNotFound is wrapped by Store implementations when a record does
// not exist, so callers can tell absence apart from a store failure.
var ErrNotFound = errors.New("record not found")

// Store is the persistence surface the zone core depends on. The Redis
// store implements it; tests substitute an in-memory fake.
type Store interface {
	SaveZone(ctx context.Context, zone *domain.Zone) error
	GetZone(ctx context.Context, serverID, zoneName string) (*domain.Zone, error)
	ListZonesByServer(ctx context.Context, serverID string) ([]*domain.Zone, error)
	DeleteZone(ctx context.Context, serverID, zoneName string) error

	PutHealth(ctx context.Context, rec *domain.HealthRecord) error
	GetHealth(ctx context.Context, serverID, zoneName string) (*domain.HealthRecord, error)

	AppendEvent(ctx context.Context, ev *domain.Event) error
	ListEvents(ctx context.Context, serverID, zoneName string, limit int) ([]*domain.Event, error)
}
