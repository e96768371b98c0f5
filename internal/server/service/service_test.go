package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"confd/internal/server/config"
	"confd/internal/storage"
	"confd/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testActor = types.Actor{
	UserID:    "tester",
	SourceIP:  "127.0.0.1",
	UserAgent: "go-test",
}

func testConfig() *config.Config {
	return &config.Config{
		Runtime: config.RuntimeConfig{
			Seed: map[string]string{
				"DATABASE_URL": "postgresql://db.internal:5432/app",
				"JWT_SECRET":   "0123456789abcdef0123456789abcdef",
				"APP_NAME":     "confd",
			},
			SnapshotOnChange: false,
		},
		Reload: config.ReloadConfig{
			Timeout: time.Second,
		},
	}
}

func newTestService(t *testing.T, cfg *config.Config) (*Service, *storage.MemoryStorage) {
	t.Helper()
	st := storage.NewMemoryStorage()
	svc, err := NewService(cfg, st, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = svc.Stop()
	})
	return svc, st
}

func TestServiceSeedsEmptyStorage(t *testing.T) {
	svc, st := newTestService(t, testConfig())
	ctx := context.Background()

	values, err := st.LoadConfig(ctx)
	require.NoError(t, err)
	assert.Len(t, values, 3)

	masked, warn := svc.GetAllConfig(ctx, testActor)
	assert.Nil(t, warn)
	assert.Equal(t, "confd", masked["APP_NAME"])
	assert.Equal(t, "0123************************cdef", masked["JWT_SECRET"])
}

func TestServiceUpdateAndGet(t *testing.T) {
	svc, st := newTestService(t, testConfig())
	ctx := context.Background()

	result, warn, err := svc.UpdateConfig(ctx, "LOG_LEVEL", "debug", testActor)
	require.NoError(t, err)
	assert.Nil(t, warn)
	assert.Equal(t, "LOG_LEVEL", result.Key)
	assert.False(t, result.Existed)

	value, warn, err := svc.GetConfig(ctx, "LOG_LEVEL", testActor)
	require.NoError(t, err)
	assert.Nil(t, warn)
	assert.Equal(t, "debug", value)

	// persisted, not just in memory
	values, err := st.LoadConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "debug", values["LOG_LEVEL"])

	// both mutation and read were audited
	entries, err := svc.QueryAuditLogs(ctx, &storage.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, types.ActionUpdate, entries[0].Action)
	assert.Equal(t, types.ActionAccess, entries[1].Action)
}

func TestServiceUpdateMasksSensitiveResult(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	result, _, err := svc.UpdateConfig(context.Background(),
		"API_KEY", "super-secret-key-123", testActor)
	require.NoError(t, err)
	assert.Equal(t, "supe************-123", result.Value)
}

func TestServiceUpdateValidationFailure(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	_, _, err := svc.UpdateConfig(ctx, "SERVER_PORT", "http", testActor)
	require.Error(t, err)
	var verr *types.ValidationError
	assert.ErrorAs(t, err, &verr)

	// nothing was written or audited
	_, _, err = svc.GetConfig(ctx, "SERVER_PORT", testActor)
	assert.ErrorIs(t, err, types.ErrKeyNotFound)
}

func TestServiceDeleteRequiredKeyRefused(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	_, err := svc.DeleteConfig(ctx, "DATABASE_URL", testActor)
	var rerr *types.RequiredKeyError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "DATABASE_URL", rerr.Key)

	value, _, err := svc.GetConfig(ctx, "DATABASE_URL", testActor)
	require.NoError(t, err)
	assert.NotEmpty(t, value)
}

func TestServiceDelete(t *testing.T) {
	svc, st := newTestService(t, testConfig())
	ctx := context.Background()

	_, _, err := svc.UpdateConfig(ctx, "FEATURE_FLAG", "on", testActor)
	require.NoError(t, err)

	warn, err := svc.DeleteConfig(ctx, "FEATURE_FLAG", testActor)
	require.NoError(t, err)
	assert.Nil(t, warn)

	_, _, err = svc.GetConfig(ctx, "FEATURE_FLAG", testActor)
	assert.ErrorIs(t, err, types.ErrKeyNotFound)

	values, err := st.LoadConfig(ctx)
	require.NoError(t, err)
	_, ok := values["FEATURE_FLAG"]
	assert.False(t, ok)
}

func TestServiceSnapshotOnChange(t *testing.T) {
	cfg := testConfig()
	cfg.Runtime.SnapshotOnChange = true
	svc, _ := newTestService(t, cfg)
	ctx := context.Background()

	result, _, err := svc.UpdateConfig(ctx, "APP_NAME", "confd2", testActor)
	require.NoError(t, err)
	require.NotEmpty(t, result.Snapshot)

	snap, err := svc.GetVersion(ctx, result.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, "confd", snap.Config["APP_NAME"])
}

func TestServiceVersionLifecycle(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	snap, err := svc.CreateVersion(ctx, "baseline", []string{"release"}, testActor)
	require.NoError(t, err)

	_, _, err = svc.UpdateConfig(ctx, "APP_NAME", "confd2", testActor)
	require.NoError(t, err)

	diff, err := svc.CompareVersions(ctx, snap.ID, svc.ListVersions(ctx)[0].ID)
	require.NoError(t, err)
	// comparing a version against itself when no snapshot-on-change ran
	_ = diff

	result, warn, err := svc.RollbackVersion(ctx, snap.ID, testActor)
	require.NoError(t, err)
	assert.Nil(t, warn)
	assert.Equal(t, snap.ID, result.RestoredID)
	assert.Equal(t, []string{"APP_NAME"}, result.ChangedKeys)

	value, _, err := svc.GetConfig(ctx, "APP_NAME", testActor)
	require.NoError(t, err)
	assert.Equal(t, "confd", value)

	entries, err := svc.QueryAuditLogs(ctx, &storage.AuditQuery{
		Action: types.ActionRollback,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, snap.ID, entries[0].Key)
}

func TestServiceVersionMasking(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	snap, err := svc.CreateVersion(ctx, "baseline", nil, testActor)
	require.NoError(t, err)

	got, err := svc.GetVersion(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "0123************************cdef", got.Config["JWT_SECRET"])

	// the internal copy stays unmasked
	raw, err := svc.versions.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", raw.Config["JWT_SECRET"])
}

type failingAuditStorage struct {
	*storage.MemoryStorage
	fail bool
}

func (f *failingAuditStorage) SaveAuditEntry(ctx context.Context, e *types.AuditEntry) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemoryStorage.SaveAuditEntry(ctx, e)
}

func TestServiceAuditFailureIsWarning(t *testing.T) {
	st := &failingAuditStorage{MemoryStorage: storage.NewMemoryStorage()}
	svc, err := NewService(testConfig(), st, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop() })
	ctx := context.Background()

	st.fail = true
	result, warn, err := svc.UpdateConfig(ctx, "LOG_LEVEL", "warn", testActor)
	require.NoError(t, err)
	require.NotNil(t, warn)
	assert.Equal(t, types.ActionUpdate, warn.Action)
	assert.Equal(t, "LOG_LEVEL", result.Key)

	// the mutation survived the audit failure
	st.fail = false
	value, _, err := svc.GetConfig(ctx, "LOG_LEVEL", testActor)
	require.NoError(t, err)
	assert.Equal(t, "warn", value)
}

type failingConfigStorage struct {
	*storage.MemoryStorage
}

func (f *failingConfigStorage) SaveConfigValue(ctx context.Context, key, value string) error {
	return errors.New("disk full")
}

func TestServiceUpdateRestoresOnStorageFailure(t *testing.T) {
	st := &failingConfigStorage{MemoryStorage: storage.NewMemoryStorage()}
	cfg := testConfig()
	cfg.Runtime.Seed = nil
	svc, err := NewService(cfg, st, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop() })
	ctx := context.Background()

	_, _, err = svc.UpdateConfig(ctx, "LOG_LEVEL", "warn", testActor)
	require.Error(t, err)

	_, _, err = svc.GetConfig(ctx, "LOG_LEVEL", testActor)
	assert.ErrorIs(t, err, types.ErrKeyNotFound)
}

func TestServiceForceReload(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	called := 0
	svc.RegisterReloadListener("cache", func(ctx context.Context) error {
		called++
		return nil
	})

	result, warn := svc.ForceReload(ctx, testActor)
	assert.Nil(t, warn)
	assert.Equal(t, 1, result.Notified)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 1, called)

	entries, err := svc.QueryAuditLogs(ctx, &storage.AuditQuery{
		Key: types.AuditKeyForceReload,
	})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestServiceHealthCheck(t *testing.T) {
	svc, _ := newTestService(t, testConfig())

	status := svc.HealthCheck(context.Background())
	assert.True(t, status.Healthy)
	require.NotEmpty(t, status.Details)
	assert.Equal(t, "storage", status.Details[0].Name)
}

func TestServiceStatistics(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	_, _, err := svc.UpdateConfig(ctx, "A", "1", testActor)
	require.NoError(t, err)
	_, _, err = svc.UpdateConfig(ctx, "B", "2", testActor)
	require.NoError(t, err)
	_, _ = svc.GetAllConfig(ctx, testActor)

	stats, err := svc.AuditStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, int64(2), stats.ByAction[string(types.ActionUpdate)])
	assert.Equal(t, int64(1), stats.ByAction[string(types.ActionAccess)])
}

// TestConcurrentUpdatesSerialized tests that racing writers on one key
// settle on a single live value with one audit entry per write and a
// gap-free sequence
func TestConcurrentUpdatesSerialized(t *testing.T) {
	svc, _ := newTestService(t, testConfig())
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			_, _, err := svc.UpdateConfig(ctx, "WORKER_COUNT", strconv.Itoa(n), testActor)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	value, warn, err := svc.GetConfig(ctx, "WORKER_COUNT", testActor)
	require.NoError(t, err)
	assert.Nil(t, warn)
	n, err := strconv.Atoi(value)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)
	assert.Less(t, n, writers)

	entries, err := svc.QueryAuditLogs(ctx, &storage.AuditQuery{Action: types.ActionUpdate})
	require.NoError(t, err)
	require.Len(t, entries, writers)

	seqs := make([]int64, 0, len(entries))
	for _, e := range entries {
		seqs = append(seqs, e.Sequence)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, seq := range seqs {
		assert.Equal(t, int64(i+1), seq)
	}
}
