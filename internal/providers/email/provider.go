package email

import "context"

// Provider delivers transactional email.
type Provider interface {
	Configured() bool
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) Configured() bool { return false }

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}
