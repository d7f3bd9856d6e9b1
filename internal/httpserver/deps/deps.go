package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rustport/zorp/internal/logger"
	"github.com/rustport/zorp/internal/presence"
	"github.com/rustport/zorp/internal/sources/servers"
	"github.com/rustport/zorp/internal/zones"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to access the server
	AllowedCIDRS []string         // IPs allowed to access the API
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)

	RedisClient *redis.Client // Redis client connection, pinged by readyz

	Servers       map[string]servers.Server // monitored servers by ID (per-server defaults)
	Store         zones.Store               // zone / health / event persistence
	Zones         *zones.Service            // zone lifecycle commands
	Presence      *presence.Tracker         // live connect/disconnect state per server
	SweepTriggers map[string]chan struct{}  // per-server manual sweep triggers
}
