package domain

import "time"

// Event types recorded in the per-zone audit log.
const (
	EventCreated         = "created"
	EventStateGreen      = "state_green"
	EventStateRed        = "state_red"
	EventAutoRepair      = "auto_repair"
	EventDeleted         = "deleted"
	EventMergedDuplicate = "merged_duplicate"
	EventAdopted         = "adopted"
)

// Event is one append-only audit log entry for a zone. Entries are
// never mutated; retention is handled outside this service.
type Event struct {
	ZoneName    string         `json:"zone_name"`
	EventType   string         `json:"event_type"`
	ActorPlayer string         `json:"actor_player,omitempty"`
	ServerID    string         `json:"server_id"`
	Details     map[string]any `json:"details,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
