package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"confd/internal/sanitize"
	"confd/internal/storage"
	"confd/internal/types"
)

var testActor = types.Actor{
	UserID:    "alice",
	SourceIP:  "10.0.0.1",
	UserAgent: "confd-test",
}

func newTestLog(t *testing.T) *Log {
	t.Helper()

	l, err := New(context.Background(), storage.NewMemoryStorage(), sanitize.New(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return l
}

// TestAppendAndQuery tests entry recording and filtering
func TestAppendAndQuery(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	require.NoError(t, l.LogAccess(ctx, "LOG_LEVEL", testActor))
	require.NoError(t, l.LogUpdate(ctx, "LOG_LEVEL", "info", "debug", testActor))
	require.NoError(t, l.LogDelete(ctx, "OLD_KEY", "stale", testActor))
	require.NoError(t, l.LogRollback(ctx, "v1", []string{"LOG_LEVEL"}, testActor))

	entries, err := l.Query(ctx, &storage.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// sequence numbers are dense and ascending
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Sequence)
	}

	assert.Equal(t, types.ActionAccess, entries[0].Action)
	assert.Equal(t, types.ActionUpdate, entries[1].Action)
	assert.Equal(t, "info", entries[1].OldValue)
	assert.Equal(t, "debug", entries[1].NewValue)
	assert.Equal(t, "alice", entries[1].UserID)
	assert.Equal(t, "10.0.0.1", entries[1].SourceIP)

	updates, err := l.Query(ctx, &storage.AuditQuery{Action: types.ActionUpdate})
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "LOG_LEVEL", updates[0].Key)
}

// TestSensitiveValuesMaskedBeforePersistence tests that secrets never
// reach storage unmasked
func TestSensitiveValuesMaskedBeforePersistence(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	l, err := New(ctx, st, sanitize.New(), zaptest.NewLogger(t))
	require.NoError(t, err)

	secret := "abcdefghijklmnop"
	require.NoError(t, l.LogUpdate(ctx, "JWT_SECRET", "", secret, testActor))

	entries, err := st.QueryAuditEntries(ctx, &storage.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "abcd********mnop", entries[0].NewValue)
	assert.NotContains(t, entries[0].NewValue, "efgh")
}

// TestPagination tests offset/limit with no overlap or gap
func TestPagination(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	for i := 0; i < 4; i++ {
		require.NoError(t, l.LogAccess(ctx, "KEY", testActor))
	}

	first, err := l.Query(ctx, &storage.AuditQuery{Limit: 2, Offset: 0})
	require.NoError(t, err)
	second, err := l.Query(ctx, &storage.AuditQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Equal(t, []int64{1, 2}, []int64{first[0].Sequence, first[1].Sequence})
	assert.Equal(t, []int64{3, 4}, []int64{second[0].Sequence, second[1].Sequence})
}

// TestConcurrentAppends tests that sequence numbers stay dense under
// concurrency
func TestConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, l.LogAccess(ctx, "KEY", testActor))
		}()
	}
	wg.Wait()

	entries, err := l.Query(ctx, &storage.AuditQuery{Limit: n})
	require.NoError(t, err)
	require.Len(t, entries, n)
	seen := make(map[int64]bool, n)
	for _, e := range entries {
		assert.False(t, seen[e.Sequence], "duplicate sequence %d", e.Sequence)
		seen[e.Sequence] = true
	}
	assert.Equal(t, int64(n), l.Sequence())
}

// TestStatistics tests aggregate counts
func TestStatistics(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	require.NoError(t, l.LogAccess(ctx, "A", testActor))
	require.NoError(t, l.LogAccess(ctx, "A", testActor))
	require.NoError(t, l.LogUpdate(ctx, "B", "1", "2", types.Actor{UserID: "bob"}))

	stats, err := l.GetStatistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, int64(2), stats.ByAction["access"])
	assert.Equal(t, int64(1), stats.ByAction["update"])
	assert.Equal(t, int64(2), stats.ByKey["A"])
	assert.Equal(t, int64(2), stats.ByUser["alice"])
	assert.Equal(t, int64(1), stats.ByUser["bob"])
	assert.Equal(t, int64(1), stats.FirstSequence)
	assert.Equal(t, int64(3), stats.LastSequence)

	day := time.Now().UTC().Format("2006-01-02")
	assert.Equal(t, int64(3), stats.ByDay[day])
}

// TestExportJSON tests the JSON export stream
func TestExportJSON(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	require.NoError(t, l.LogUpdate(ctx, "API_KEY", "", "supersecretvalue", testActor))
	require.NoError(t, l.LogAccess(ctx, "LOG_LEVEL", testActor))

	var buf bytes.Buffer
	require.NoError(t, l.Export(ctx, &buf, ExportOptions{Format: FormatJSON}))

	var entries []*types.AuditEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "supe********alue", entries[0].NewValue)
	assert.NotContains(t, buf.String(), "supersecretvalue")
}

// TestExportCSV tests the CSV export stream
func TestExportCSV(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	require.NoError(t, l.LogDelete(ctx, "OLD", "value", testActor))

	var buf bytes.Buffer
	require.NoError(t, l.Export(ctx, &buf, ExportOptions{Format: FormatCSV}))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2) // header + one entry
	assert.Equal(t, "sequence", records[0][0])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "delete", records[1][2])
	assert.Equal(t, "OLD", records[1][3])
}

// TestExportUnsupportedFormat tests format validation
func TestExportUnsupportedFormat(t *testing.T) {
	l := newTestLog(t)

	var buf bytes.Buffer
	err := l.Export(context.Background(), &buf, ExportOptions{Format: "xml"})
	var expErr *types.ExportError
	assert.ErrorAs(t, err, &expErr)
}

// TestExportDateFilter tests start/end filtering
func TestExportDateFilter(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t)

	require.NoError(t, l.LogAccess(ctx, "KEY", testActor))

	var buf bytes.Buffer
	future := time.Now().Add(time.Hour)
	require.NoError(t, l.Export(ctx, &buf, ExportOptions{Format: FormatJSON, StartDate: future}))

	var entries []*types.AuditEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	assert.Empty(t, entries)
}

// TestLoggingFailureSurfaced tests that a failed append is reported as
// LoggingFailure and does not consume a sequence number
func TestLoggingFailureSurfaced(t *testing.T) {
	ctx := context.Background()
	st := &failingStorage{MemoryStorage: storage.NewMemoryStorage()}
	l, err := New(ctx, st, sanitize.New(), zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, l.LogAccess(ctx, "KEY", testActor))

	st.failAppends = true
	err = l.LogAccess(ctx, "KEY", testActor)
	var lf *types.LoggingFailure
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, types.ActionAccess, lf.Action)

	st.failAppends = false
	require.NoError(t, l.LogAccess(ctx, "KEY", testActor))

	entries, err := l.Query(ctx, &storage.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Sequence)
	assert.Equal(t, int64(2), entries[1].Sequence)
}

// TestSequenceResume tests sequence numbering across restarts
func TestSequenceResume(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	logger := zaptest.NewLogger(t)

	l, err := New(ctx, st, sanitize.New(), logger)
	require.NoError(t, err)
	require.NoError(t, l.LogAccess(ctx, "KEY", testActor))

	resumed, err := New(ctx, st, sanitize.New(), logger)
	require.NoError(t, err)
	require.NoError(t, resumed.LogAccess(ctx, "KEY", testActor))
	assert.Equal(t, int64(2), resumed.Sequence())
}

type failingStorage struct {
	*storage.MemoryStorage
	failAppends bool
}

func (f *failingStorage) SaveAuditEntry(ctx context.Context, entry *types.AuditEntry) error {
	if f.failAppends {
		return assert.AnError
	}
	return f.MemoryStorage.SaveAuditEntry(ctx, entry)
}
