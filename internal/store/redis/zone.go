package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rustport/zorp/internal/domain"
	"github.com/rustport/zorp/internal/zones"
)

// Store handles Redis operations for zone records, health records and
// the per-zone audit log.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store.
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// SaveZone stores a zone record and registers it in the per-server set.
func (s *Store) SaveZone(ctx context.Context, zone *domain.Zone) error {
	data, err := json.Marshal(zone)
	if err != nil {
		return fmt.Errorf("failed to marshal zone: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, ZoneKey(zone.ServerID, zone.ZoneName), data, 0)
	pipe.SAdd(ctx, ZoneSetKey(zone.ServerID), zone.ZoneName)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save zone %s: %w", zone.ZoneName, err)
	}

	return nil
}

// GetZone retrieves a zone record. Returns zones.ErrNotFound when it
// does not exist.
func (s *Store) GetZone(ctx context.Context, serverID, zoneName string) (*domain.Zone, error) {
	data, err := s.client.Get(ctx, ZoneKey(serverID, zoneName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("zone %s: %w", zoneName, zones.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get zone %s: %w", zoneName, err)
	}

	var zone domain.Zone
	if err := json.Unmarshal(data, &zone); err != nil {
		return nil, fmt.Errorf("failed to unmarshal zone %s: %w", zoneName, err)
	}

	return &zone, nil
}

// ListZonesByServer retrieves all zone records registered on a server.
// Records whose set entry has no backing key are skipped.
func (s *Store) ListZonesByServer(ctx context.Context, serverID string) ([]*domain.Zone, error) {
	names, err := s.client.SMembers(ctx, ZoneSetKey(serverID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list zones for %s: %w", serverID, err)
	}

	zones := make([]*domain.Zone, 0, len(names))
	for _, name := range names {
		zone, err := s.GetZone(ctx, serverID, name)
		if err != nil {
			continue
		}
		zones = append(zones, zone)
	}

	return zones, nil
}

// DeleteZone removes a zone record, its health record and its set
// membership. The audit log is retained.
func (s *Store) DeleteZone(ctx context.Context, serverID, zoneName string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, ZoneKey(serverID, zoneName))
	pipe.Del(ctx, HealthKey(serverID, zoneName))
	pipe.SRem(ctx, ZoneSetKey(serverID), zoneName)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete zone %s: %w", zoneName, err)
	}

	return nil
}
