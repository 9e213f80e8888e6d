package sqlite

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldledger/internal/core/clock"
	"fieldledger/internal/core/id"
	"fieldledger/internal/core/numerator"
	"fieldledger/internal/domain/audit"
	"fieldledger/internal/domain/outbox"
	"fieldledger/pkg/logger"
)

func TestNumberingStateStore_LoadSave(t *testing.T) {
	ctx := context.Background()
	store := NewNumberingStateStore(openTestDB(t).TxManager())

	st, err := store.Load(ctx, "org-1", numerator.KindInvoice)
	require.NoError(t, err)
	assert.Nil(t, st)

	state := numerator.State{
		OrgID:      "org-1",
		Kind:       numerator.KindInvoice,
		Prefix:     "FAC-2026",
		NextNumber: 1,
		EndNumber:  50,
		UpdatedAt:  repoNow,
	}
	require.NoError(t, store.Save(ctx, state))

	state.NextNumber = 7
	require.NoError(t, store.Save(ctx, state))

	st, err = store.Load(ctx, "org-1", numerator.KindInvoice)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "FAC-2026", st.Prefix)
	assert.EqualValues(t, 7, st.NextNumber)
	assert.EqualValues(t, 44, st.Remaining())

	other, err := store.Load(ctx, "org-1", numerator.KindQuote)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestOutbox_EmitPendingMarkSent(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFakeClock(repoNow)
	ob := NewOutbox(openTestDB(t).TxManager(), clk)

	entityID := id.New()
	ops := []outbox.Operation{
		{EntityKind: "client", EntityID: entityID, Type: outbox.OpCreate, OrgID: "org-1", Timestamp: repoNow,
			Payload: map[string]any{"name": "Acme"}},
		{EntityKind: "client", EntityID: entityID, Type: outbox.OpUpdate, OrgID: "org-1", Timestamp: repoNow,
			Payload: outbox.UpdatePayload{Patch: map[string]any{"name": "Acme Ltd"}}},
		{EntityKind: "client", EntityID: entityID, Type: outbox.OpDelete, OrgID: "org-1", Timestamp: repoNow,
			Payload: outbox.DeletePayload{ID: entityID, DeletedAt: repoNow}},
	}
	for _, op := range ops {
		require.NoError(t, ob.Emit(ctx, op))
	}

	pending, err := ob.Pending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "CREATE", pending[0].Op)
	assert.Equal(t, "UPDATE", pending[1].Op)
	assert.Equal(t, "DELETE", pending[2].Op)
	assert.Equal(t, entityID, pending[0].EntityID)

	var patch struct {
		Patch map[string]any `json:"patch"`
	}
	require.NoError(t, json.Unmarshal([]byte(pending[1].Payload), &patch))
	assert.Equal(t, "Acme Ltd", patch.Patch["name"])

	clk.Advance(time.Minute)
	require.NoError(t, ob.MarkSent(ctx, []id.ID{pending[0].ID, pending[1].ID}))
	require.NoError(t, ob.MarkSent(ctx, nil))

	pending, err = ob.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "DELETE", pending[0].Op)
}

func TestOutbox_EmitJoinsTransaction(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	ob := NewOutbox(db.TxManager(), nil)

	_ = db.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, ob.Emit(ctx, outbox.Operation{
			EntityKind: "client", EntityID: id.New(), Type: outbox.OpCreate, OrgID: "org-1", Timestamp: repoNow,
		}))
		return assert.AnError
	})

	pending, err := ob.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "rolled back with the write")
}

func TestAuditLog_HistoryCompressesLargeMetadata(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	log, err := NewAuditLog(db.TxManager(), AuditOptions{Buffer: 8, CompressThreshold: 64}, logger.Nop())
	require.NoError(t, err)

	entityID := id.New()
	big := strings.Repeat("line ", 100)
	log.Record(ctx, audit.Event{EntityKind: "invoice", EntityID: entityID, Action: audit.ActionCreate,
		OrgID: "org-1", UserID: "user-1", At: repoNow, Metadata: map[string]any{"status": "draft"}})
	log.Record(ctx, audit.Event{EntityKind: "invoice", EntityID: entityID, Action: audit.ActionUpdate,
		OrgID: "org-1", UserID: "user-1", At: repoNow.Add(time.Second), Metadata: map[string]any{"notes": big}})
	log.Record(ctx, audit.Event{EntityKind: "invoice", EntityID: entityID, Action: audit.ActionDelete,
		OrgID: "org-1", UserID: "user-1", At: repoNow.Add(2 * time.Second)})
	require.NoError(t, log.Close())
	require.NoError(t, log.Close())

	var algos []string
	require.NoError(t, sqlscan.Select(ctx, db, &algos, "SELECT compression_algo FROM sys_audit ORDER BY created_at"))
	assert.Equal(t, []string{"none", "zstd", "none"}, algos)

	events, err := log.History(ctx, "invoice", entityID, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, audit.ActionCreate, events[0].Action)
	assert.Equal(t, "draft", events[0].Metadata["status"])
	assert.Equal(t, big, events[1].Metadata["notes"])
	assert.Nil(t, events[2].Metadata)
	assert.Equal(t, "user-1", events[2].UserID)

	// Dropped after close, never written.
	log.Record(ctx, audit.Event{EntityKind: "invoice", EntityID: entityID, Action: audit.ActionUpdate, OrgID: "org-1"})
	events, err = log.History(ctx, "invoice", entityID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
