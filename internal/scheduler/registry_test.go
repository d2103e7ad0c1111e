package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/juspay/hyperswitch-sub035/pkg/db/models"
)

func TestRegistryRunnersAreSorted(t *testing.T) {
	noop := HandlerFunc(func(context.Context, models.ProcessTracker) error { return nil })
	r := NewRegistry()
	r.Register("B_RUNNER", noop)
	r.Register("A_RUNNER", noop)
	r.Register("", noop)
	r.Register("C_RUNNER", nil)

	assert.Equal(t, []string{"A_RUNNER", "B_RUNNER"}, r.Runners())
	_, ok := r.Handler("C_RUNNER")
	assert.False(t, ok)
}
