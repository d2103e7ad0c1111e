package scheduler

import (
	"context"
	"sort"

	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
)

// Handler processes a single claimed process tracker row.
type Handler interface {
	Process(ctx context.Context, tracker models.ProcessTracker) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, tracker models.ProcessTracker) error

func (f HandlerFunc) Process(ctx context.Context, tracker models.ProcessTracker) error {
	return f(ctx, tracker)
}

// Registry maps runner names to their handlers.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

// Register binds runner to h. Nil handlers and empty runner names are ignored.
func (r *Registry) Register(runner string, h Handler) {
	if runner == "" || h == nil {
		return
	}
	r.handlers[runner] = h
}

func (r *Registry) Handler(runner string) (Handler, bool) {
	h, ok := r.handlers[runner]
	return h, ok
}

// Runners returns the registered runner names in stable order.
func (r *Registry) Runners() []string {
	out := make([]string, 0, len(r.handlers))
	for runner := range r.handlers {
		out = append(out, runner)
	}
	sort.Strings(out)
	return out
}
