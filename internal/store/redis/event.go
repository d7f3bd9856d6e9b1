package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rustport/zorp/internal/domain"
)

// AppendEvent appends an entry to a zone's audit log.
func (s *Store) AppendEvent(ctx context.Context, ev *domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := EventsKey(ev.ServerID, ev.ZoneName)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append event for %s: %w", ev.ZoneName, err)
	}

	return nil
}

// ListEvents returns up to limit most recent audit log entries for a
// zone, oldest first. limit <= 0 returns the whole log.
func (s *Store) ListEvents(ctx context.Context, serverID, zoneName string, limit int) ([]*domain.Event, error) {
	key := EventsKey(serverID, zoneName)

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.client.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list events for %s: %w", zoneName, err)
	}

	events := make([]*domain.Event, 0, len(raw))
	for _, item := range raw {
		var ev domain.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			continue
		}
		events = append(events, &ev)
	}

	return events, nil
}
