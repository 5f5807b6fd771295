package jsonfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bnema/relayd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	ledger, err := NewLedger(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)

	ids, err := ledger.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestLedgerAddIsIdempotentAndOrdered(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state", "sessions.json")
	ledger, err := NewLedger(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, ledger.Add(ctx, "6282222222222"))
	require.NoError(t, ledger.Add(ctx, "6281111111111"))
	require.NoError(t, ledger.Add(ctx, "6282222222222"))

	ids, err := ledger.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Identity{"6282222222222", "6281111111111"}, ids)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["6282222222222","6281111111111"]`, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(ledgerFileMode), info.Mode().Perm())
}

func TestLedgerRemove(t *testing.T) {
	t.Parallel()

	ledger, err := NewLedger(filepath.Join(t.TempDir(), "sessions.json"))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, ledger.Add(ctx, "6281111111111"))
	require.NoError(t, ledger.Add(ctx, "6282222222222"))
	require.NoError(t, ledger.Remove(ctx, "6281111111111"))
	require.NoError(t, ledger.Remove(ctx, "6289999999999"))

	ids, err := ledger.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Identity{"6282222222222"}, ids)

	ok, err := ledger.Contains(ctx, "6281111111111")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerReadsExternallyWrittenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte(`["6281234567890","6281234567890",""]`), 0o600))

	ledger, err := NewLedger(path)
	require.NoError(t, err)

	ids, err := ledger.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Identity{"6281234567890"}, ids)
}

func TestLedgerRejectsMalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"a list"}`), 0o600))

	ledger, err := NewLedger(path)
	require.NoError(t, err)

	_, err = ledger.Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode ledger file")

	err = ledger.Add(context.Background(), "6281234567890")
	require.Error(t, err)
}

func TestLedgerConcurrentAddsFromSeparateInstances(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger, err := NewLedger(path)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, ledger.Add(ctx, domain.Identity(fmt.Sprintf("62800000000%02d", i))))
		}()
	}
	wg.Wait()

	ledger, err := NewLedger(path)
	require.NoError(t, err)
	ids, err := ledger.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 20)
}

func TestLedgerRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewLedger("")
	require.Error(t, err)
}
