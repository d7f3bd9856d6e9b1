package redis

const (
	// KeyPrefixZone is the prefix for zone record keys.
	KeyPrefixZone = "zorp:zone:"
	// KeyPrefixZoneSet is the prefix for the per-server set of zone names.
	KeyPrefixZoneSet = "zorp:zones:"
	// KeyPrefixHealth is the prefix for the latest health record per zone.
	KeyPrefixHealth = "zorp:health:"
	// KeyPrefixEvents is the prefix for the per-zone audit log list.
	KeyPrefixEvents = "zorp:events:"
)

// ZoneKey returns the Redis key for a zone record.
func ZoneKey(serverID, zoneName string) string {
	return KeyPrefixZone + serverID + ":" + zoneName
}

// ZoneSetKey returns the key for the set of zone names on a server.
func ZoneSetKey(serverID string) string {
	return KeyPrefixZoneSet + serverID
}

// HealthKey returns the key for a zone's latest health record.
func HealthKey(serverID, zoneName string) string {
	return KeyPrefixHealth + serverID + ":" + zoneName
}

// EventsKey returns the key for a zone's audit log.
func EventsKey(serverID, zoneName string) string {
	return KeyPrefixEvents + serverID + ":" + zoneName
}
