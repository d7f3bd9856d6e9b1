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

// PutHealth stores the latest health record for a zone, replacing any
// previous one.
func (s *Store) PutHealth(ctx context.Context, rec *domain.HealthRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal health record: %w", err)
	}

	key := HealthKey(rec.ServerID, rec.ZoneName)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save health record for %s: %w", rec.ZoneName, err)
	}

	return nil
}

// GetHealth retrieves the latest health record for a zone. Returns
// zones.ErrNotFound when the zone has never been checked.
func (s *Store) GetHealth(ctx context.Context, serverID, zoneName string) (*domain.HealthRecord, error) {
	data, err := s.client.Get(ctx, HealthKey(serverID, zoneName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("health record %s: %w", zoneName, zones.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get health record for %s: %w", zoneName, err)
	}

	var rec domain.HealthRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal health record for %s: %w", zoneName, err)
	}

	return &rec, nil
}
