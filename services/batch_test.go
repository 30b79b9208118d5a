package services

import (
	"context"
	"testing"
	"time"

	"sku-service/models"
	"sku-service/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPercent(t *testing.T) {
	assert.Equal(t, 100, percent(0, 0))
	assert.Equal(t, 100, percent(50, -1))
	assert.Equal(t, 33, percent(1, 3))
	assert.Equal(t, 67, percent(2, 3))
	assert.Equal(t, 100, percent(150, 100))
}

func TestBatchProcessor_KeepStateOnCompletion(t *testing.T) {
	state := NewStateStore(store.NewMemoryStore(nil), time.Minute)
	bp := NewBatchProcessor(state, BatchConfig{PageSize: 10}, nil, zap.NewNop())

	completed := false
	plan := stepPlan{
		kind:      models.OpValidate,
		keepState: true,
		count:     func(context.Context) (int64, error) { return 2, nil },
		fetch: func(context.Context, int, int) ([]int64, error) {
			return []int64{1, 2}, nil
		},
		apply: func(_ context.Context, _ *models.OperationState, ids []int64) (stepOutcome, error) {
			return stepOutcome{processed: len(ids)}, nil
		},
		complete: func(context.Context, *models.OperationState, *models.ProgressReport) { completed = true },
	}

	rep, st, err := bp.Run(context.Background(), plan, 0)
	require.NoError(t, err)
	assert.True(t, rep.Complete)
	assert.True(t, completed)
	assert.Equal(t, 2, st.Processed)

	stored, err := state.Load(context.Background(), models.OpValidate)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Processed)
}

func TestBatchProcessor_CountFailure(t *testing.T) {
	state := NewStateStore(store.NewMemoryStore(nil), time.Minute)
	bp := NewBatchProcessor(state, BatchConfig{}, nil, zap.NewNop())
	assert.Equal(t, DefaultPageSize, bp.PageSize())

	plan := stepPlan{
		kind:  models.OpCopyGTIN,
		count: func(context.Context) (int64, error) { return 0, errBoom },
	}
	_, _, err := bp.Run(context.Background(), plan, 0)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, models.OpCopyGTIN, stepErr.Operation)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "copy_gtin step at offset 0 failed")
}

func TestCapabilityGate(t *testing.T) {
	gate := CapabilityGate{Role: "admin", Capability: "manage_catalog"}

	assert.False(t, gate.Allowed(context.Background()))
	assert.True(t, gate.Allowed(WithPrincipal(context.Background(), Principal{Role: "admin"})))
	assert.True(t, gate.Allowed(WithPrincipal(context.Background(), Principal{
		Role:         "editor",
		Capabilities: []string{"read", "manage_catalog"},
	})))
	assert.False(t, gate.Allowed(WithPrincipal(context.Background(), Principal{Role: "customer"})))
	assert.True(t, AllowAll{}.Allowed(context.Background()))
}
