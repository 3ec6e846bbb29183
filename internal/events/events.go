package events

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	EventCommissionRecorded = "commission.recorded"
	EventCommissionCharged  = "commission.charged"
	EventSalaryCharged      = "salary.charged"
	EventPayoutPaid         = "payout.paid"
	EventPayoutHeld         = "payout.held"
	EventPayoutFailed       = "payout.failed"
)

// Event is a settlement fact published for downstream consumers.
type Event struct {
	Type        string         `json:"type"`
	WorkspaceID snowflake.ID   `json:"workspace_id"`
	SubjectID   snowflake.ID   `json:"subject_id"`
	DedupeKey   string         `json:"dedupe_key"`
	Payload     map[string]any `json:"payload,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
