package history

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/free5gc/mme/internal/logger"
	"github.com/free5gc/mme/internal/model"
	"github.com/free5gc/mme/internal/northbound"
)

func TestMain(m *testing.M) {
	_ = logger.InitLog("error", false)
	os.Exit(m.Run())
}

func notification(outputType model.OutputType, imsi model.Imsi, timestamp model.Timestamp) northbound.RegistrationNotification {
	return northbound.RegistrationNotification{
		Type:      outputType,
		Imsi:      imsi,
		Timestamp: timestamp,
	}
}

func TestAppendAndQuery(t *testing.T) {
	store := NewMemoryStore(16)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, notification(model.OutputReg, 100, 1)))
	require.NoError(t, store.Append(ctx, notification(model.OutputCgiChange, 100, 2)))
	require.NoError(t, store.Append(ctx, notification(model.OutputReg, 200, 3)))
	require.NoError(t, store.Append(ctx, notification(model.OutputUnReg, 100, 4)))

	assert.Equal(t, 4, store.Len())

	all, queryError := store.Query(ctx, Query{})
	require.NoError(t, queryError)
	require.Len(t, all, 4)
	assert.Equal(t, model.Timestamp(1), all[0].Timestamp)

	imsi := model.Imsi(100)
	byImsi, queryError := store.Query(ctx, Query{Imsi: &imsi})
	require.NoError(t, queryError)
	assert.Len(t, byImsi, 3)

	byType, queryError := store.Query(ctx, Query{Type: model.OutputReg})
	require.NoError(t, queryError)
	assert.Len(t, byType, 2)

	limited, queryError := store.Query(ctx, Query{Limit: 1})
	require.NoError(t, queryError)
	require.Len(t, limited, 1)
	assert.Equal(t, model.Timestamp(1), limited[0].Timestamp)
}

func TestAppendTrimsOldestBeyondMaxItems(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, notification(model.OutputReg, 100, 1)))
	require.NoError(t, store.Append(ctx, notification(model.OutputReg, 200, 2)))
	require.NoError(t, store.Append(ctx, notification(model.OutputReg, 300, 3)))

	assert.Equal(t, 2, store.Len())

	remaining, queryError := store.Query(ctx, Query{})
	require.NoError(t, queryError)
	require.Len(t, remaining, 2)
	assert.Equal(t, model.Imsi(200), remaining[0].Imsi)
	assert.Equal(t, model.Imsi(300), remaining[1].Imsi)
}

func TestQueryHonoursCancelledContext(t *testing.T) {
	store := NewMemoryStore(4)

	cancelledContext, cancel := context.WithCancel(context.Background())
	cancel()

	_, queryError := store.Query(cancelledContext, Query{})
	assert.Error(t, queryError)

	appendError := store.Append(cancelledContext, notification(model.OutputReg, 100, 1))
	assert.Error(t, appendError)
}
