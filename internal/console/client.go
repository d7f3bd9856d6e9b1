// Package console issues zone commands to a game server's remote
// console. The client is deliberately dumb: it sends one command at a
// time over a single logical channel, applies a timeout, and reports
// failures. Retries and ordering policy belong to the callers.
package console

import (
	"context"
	"errors"

	"github.com/rustport/zorp/internal/domain"
)

var (
	// ErrTimeout means the remote console was unreachable or too slow.
	// Transport-level: the whole server pass should back off.
	ErrTimeout = errors.New("console: transport timeout")

	// ErrRejected means the remote side returned an error for a
	// specific command. Command-level: retried after the repair
	// cool-down.
	ErrRejected = errors.New("console: command rejected")
)

// IsTransport reports whether an error indicates the server-wide
// transport is down rather than a single command failing.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Permissions is the pair of damage flags commanded on a zone.
type Permissions struct {
	AllowBuildingDamage bool
	AllowPVPDamage      bool
}

// Client is the narrow command channel to one game server. Every call
// is idempotent on the remote side; none of them retry.
type Client interface {
	// ApplyPermissions sets the damage flags on a zone.
	ApplyPermissions(ctx context.Context, zoneName string, perms Permissions) error

	// ApplyColor sets a zone's visual color ("r,g,b").
	ApplyColor(ctx context.Context, zoneName, color string) error

	// CreateZone creates a zone at a position with the given size.
	CreateZone(ctx context.Context, zone *domain.Zone) error

	// DeleteZone removes a zone from the game server.
	DeleteZone(ctx context.Context, zoneName string) error

	// ListLiveZones returns the names of zones currently present on
	// the game server. Best effort; a timeout error means the snapshot
	// is unusable, not that the server is empty.
	ListLiveZones(ctx context.Context) ([]string, error)

	// Close tears down the underlying connection.
	Close() error
}
