// Package notificationtest provides a Dispatcher that records requests.
package notificationtest

import (
	"context"
	"sync"

	"github.com/CloserClaus/closer-claus-hub-sub004/internal/notification/domain"
)

type Recorder struct {
	mu       sync.Mutex
	requests []domain.Request
	alerts   []string
}

func (r *Recorder) Notify(_ context.Context, req domain.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
}

func (r *Recorder) AlertOperator(_ context.Context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, message)
}

func (r *Recorder) Requests() []domain.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Request(nil), r.requests...)
}

// Types lists the recorded notification types in order.
func (r *Recorder) Types() []domain.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Type, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req.Type)
	}
	return out
}

func (r *Recorder) Alerts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.alerts...)
}
