package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossfield13/passctl/pkg/vault"
)

// newTestLogger opens a real vault database so the tests run against the
// migrated audit_log schema rather than a copy of it.
func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	store, err := vault.Open(context.Background(), filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewLogger(store.DB())
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger(t)

	events := []Event{
		{Action: ActionVaultInit, Success: true},
		{Action: ActionLogin, IP: "192.0.2.10", UserAgent: "passctl-cli", Success: false, Detail: "wrong password"},
		{Action: ActionEntryRead, EntryID: "e3b0c442-0000-4000-8000-000000000001", Success: true},
	}
	for _, event := range events {
		require.NoError(t, logger.Record(ctx, event))
	}

	records, err := logger.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Most recent first.
	assert.Equal(t, ActionEntryRead, records[0].Action)
	assert.Equal(t, ActionLogin, records[1].Action)
	assert.Equal(t, ActionVaultInit, records[2].Action)

	assert.Equal(t, int64(3), records[0].Seq)
	assert.Equal(t, "192.0.2.10", records[1].IP)
	assert.Equal(t, "passctl-cli", records[1].UserAgent)
	assert.Equal(t, "wrong password", records[1].Detail)
	assert.False(t, records[1].Success)
	assert.True(t, records[0].Success)
	assert.False(t, records[0].Timestamp.IsZero())
	assert.NotEmpty(t, records[0].Chain)

	limited, err := logger.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, int64(3), limited[0].Seq)
}

func TestRecordRequiresAction(t *testing.T) {
	logger := newTestLogger(t)
	err := logger.Record(context.Background(), Event{Success: true})
	assert.Error(t, err)
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger(t)

	n, err := logger.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, logger.Record(ctx, Event{Action: ActionLogin, Success: true}))
	n, err = logger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVerifyCleanChain(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger(t)

	result, err := logger.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Zero(t, result.Records)

	for i := 0; i < 5; i++ {
		require.NoError(t, logger.Record(ctx, Event{Action: ActionEntryCreate, Success: true}))
	}

	result, err = logger.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 5, result.Records)
	assert.Empty(t, result.Errors)
}

func TestVerifyDetectsTampering(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, logger.Record(ctx, Event{Action: ActionEntryUpdate, Success: true}))
	}

	_, err := logger.db.ExecContext(ctx,
		`UPDATE audit_log SET detail = 'rewritten after the fact' WHERE seq = 2`)
	require.NoError(t, err)

	result, err := logger.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "seq 2")
}

func TestVerifyDetectsDeletion(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, logger.Record(ctx, Event{Action: ActionEntryDelete, Success: true}))
	}

	_, err := logger.db.ExecContext(ctx, `DELETE FROM audit_log WHERE seq = 2`)
	require.NoError(t, err)

	result, err := logger.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

// TestChainContinuesAcrossLoggers exercises the stateless chain head: a
// fresh Logger over the same database must extend, not restart, the chain.
func TestChainContinuesAcrossLoggers(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger(t)

	require.NoError(t, logger.Record(ctx, Event{Action: ActionLogin, Success: true}))
	require.NoError(t, logger.Record(ctx, Event{Action: ActionLogout, Success: true}))

	fresh := NewLogger(logger.db)
	require.NoError(t, fresh.Record(ctx, Event{Action: ActionLogin, Success: true}))

	result, err := fresh.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 3, result.Records)
}
