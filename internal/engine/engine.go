// Package engine holds the pure state-transition rules for monitored
// entities. Nothing in here touches a clock, a store or the network: callers
// pass the current record (or nil) and "now", and get back the next record
// together with the notification it warrants.
package engine

import (
	"github.com/charleshuang3/cf-ping/internal/models"
)

// Outcome names which row of the decision table fired.
type Outcome int

const (
	OutcomeNoOp Outcome = iota
	OutcomeCreated
	OutcomeRefreshed
	OutcomeRecovered
	OutcomeOnboardedDown
	OutcomeDeclaredDown
)

var outcomeNames = map[Outcome]string{
	OutcomeNoOp:          "no_op",
	OutcomeCreated:       "created",
	OutcomeRefreshed:     "refreshed",
	OutcomeRecovered:     "recovered",
	OutcomeOnboardedDown: "onboarded_down",
	OutcomeDeclaredDown:  "declared_down",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Outcomes lists every outcome in declaration order.
func Outcomes() []Outcome {
	return []Outcome{
		OutcomeNoOp,
		OutcomeCreated,
		OutcomeRefreshed,
		OutcomeRecovered,
		OutcomeOnboardedDown,
		OutcomeDeclaredDown,
	}
}

// Decision is the result of applying one event to one entity.
type Decision struct {
	Outcome Outcome
	// Record is the record to persist. It is meaningful only when Changed
	// reports true. Version is carried over from the existing record.
	Record models.EntityStatus
	// Notification is the message to deliver, empty when none is due.
	Notification string
	// Downtime is the silence, in seconds, that ended with a recovery.
	Downtime int64
}

// Changed reports whether Record has to be written.
func (d Decision) Changed() bool {
	return d.Outcome != OutcomeNoOp
}

// Notify reports whether the decision carries a notification.
func (d Decision) Notify() bool {
	return d.Notification != ""
}

// OnPing applies an accepted ping received at now.
func OnPing(existing *models.EntityStatus, name string, now int64) Decision {
	if existing == nil {
		return Decision{
			Outcome: OutcomeCreated,
			Record: models.EntityStatus{
				Name:           name,
				LastSeenAt:     now,
				State:          models.StateUp,
				StateChangedAt: now,
			},
			Notification: firstContactMessage(name),
		}
	}

	next := *existing
	next.Name = name
	// Another instance with a faster clock may already have recorded a later
	// sighting; last_seen_at never moves backwards.
	next.LastSeenAt = max(existing.LastSeenAt, now)

	if existing.State == models.StateUp {
		return Decision{Outcome: OutcomeRefreshed, Record: next}
	}

	downtime := max(now-existing.LastSeenAt, 0)
	next.State = models.StateUp
	next.StateChangedAt = now
	return Decision{
		Outcome:      OutcomeRecovered,
		Record:       next,
		Notification: recoveredMessage(name, downtime),
		Downtime:     downtime,
	}
}

// OnSweepTick evaluates one entity during a sweep pass started at now.
func OnSweepTick(existing *models.EntityStatus, name string, now, threshold int64) Decision {
	if existing == nil {
		return Decision{
			Outcome: OutcomeOnboardedDown,
			Record: models.EntityStatus{
				Name:           name,
				LastSeenAt:     0,
				State:          models.StateDown,
				StateChangedAt: now,
			},
			Notification: neverReportedMessage(name),
		}
	}

	if !Silent(*existing, now, threshold) {
		return Decision{Outcome: OutcomeNoOp, Record: *existing}
	}

	next := *existing
	next.Name = name
	next.State = models.StateDown
	next.StateChangedAt = now
	return Decision{
		Outcome:      OutcomeDeclaredDown,
		Record:       next,
		Notification: declaredDownMessage(name, threshold),
	}
}

// Silent reports whether an UP record has gone quiet for strictly longer
// than threshold seconds at now. The sweep uses it to declare entities down
// and the status report uses it to flag stale ones.
func Silent(rec models.EntityStatus, now, threshold int64) bool {
	return rec.State == models.StateUp && now-rec.LastSeenAt > threshold
}
