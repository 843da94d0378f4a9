package models

// State is the believed liveness of a monitored entity.
type State string

const (
	StateUp   State = "UP"
	StateDown State = "DOWN"
)

// EntityStatus is the persisted record for one monitored entity.
//
// Timestamps are unix seconds. LastSeenAt is 0 when the entity has never
// pinged. Version is bumped on every write and is used for conditional
// updates; the first stored version is 1.
type EntityStatus struct {
	Name           string `json:"name" dynamodbav:"name"`
	LastSeenAt     int64  `json:"last_seen_at" dynamodbav:"last_seen_at"`
	State          State  `json:"state" dynamodbav:"state"`
	StateChangedAt int64  `json:"state_changed_at" dynamodbav:"state_changed_at"`
	Version        int64  `json:"version" dynamodbav:"version"`
}
