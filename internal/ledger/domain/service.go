package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// PostRequest describes one balanced entry.
type PostRequest struct {
	WorkspaceID snowflake.ID
	SourceType  SourceType
	SourceID    snowflake.ID
	Currency    string
	OccurredAt  time.Time
	Lines       []Line
}

type Service interface {
	// Post writes the entry inside tx when given so it commits with the
	// state change that caused it. Reposting the same source is a no-op.
	Post(ctx context.Context, tx *gorm.DB, req PostRequest) error
}

// ValidateBalanced ensures debits equal credits.
func ValidateBalanced(lines []Line) error {
	var debits, credits int64
	for _, line := range lines {
		switch line.Direction {
		case Debit:
			debits += line.Amount
		case Credit:
			credits += line.Amount
		default:
			return ErrInvalidDirection
		}
	}
	if debits != credits {
		return ErrUnbalancedEntry
	}
	return nil
}
