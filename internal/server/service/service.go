package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"confd/internal/audit"
	"confd/internal/audit/forward"
	"confd/internal/reload"
	"confd/internal/sanitize"
	"confd/internal/server/config"
	"confd/internal/storage"
	"confd/internal/store"
	"confd/internal/version"

	"go.uber.org/zap"
)

// Service orchestrates the runtime configuration core. Every mutation
// follows one sequence: acquire the mutation lock, sanitize, validate,
// snapshot, apply, persist, append the audit entry, release, then notify
// reload listeners. The single mutex serializes mutations so no two
// requests can interleave into a lost update or a snapshot of a state
// that never existed.
type Service struct {
	config      *config.Config
	storage     storage.Interface
	live        *store.Store
	versions    *version.Store
	auditLog    *audit.Log
	sanitizer   *sanitize.Sanitizer
	rules       *store.Rules
	coordinator *reload.Coordinator
	logger      *zap.Logger

	// serializes update/delete/rollback/create-version
	mutationMu sync.Mutex

	broadcaster *reload.RedisBroadcaster
	startTime   time.Time
	ctx         context.Context
	cleanupFn   context.CancelFunc
}

// NewService creates the service: it bootstraps the live store from
// storage (seeding it on first start), loads version history, resumes the
// audit sequence and wires forwarders and reload listeners.
func NewService(cfg *config.Config, st storage.Interface, logger *zap.Logger) (*Service, error) {
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()

	values, err := st.LoadConfig(bootCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if len(values) == 0 && len(cfg.Runtime.Seed) > 0 {
		values = cfg.Runtime.Seed
		if err := st.ReplaceConfig(bootCtx, values); err != nil {
			return nil, fmt.Errorf("failed to seed configuration: %w", err)
		}
		logger.Info("seeded configuration", zap.Int("keys", len(values)))
	}

	var sanitizer *sanitize.Sanitizer
	if len(cfg.Runtime.SensitiveKeys) > 0 {
		sanitizer = sanitize.NewWithSensitiveKeys(cfg.Runtime.SensitiveKeys)
	} else {
		sanitizer = sanitize.New()
	}

	var live *store.Store
	if len(cfg.Runtime.RequiredKeys) > 0 {
		live = store.NewWithRequiredKeys(values, cfg.Runtime.RequiredKeys)
	} else {
		live = store.New(values)
	}

	versions, err := version.New(bootCtx, live, st, logger)
	if err != nil {
		return nil, err
	}

	auditLog, err := audit.New(bootCtx, st, sanitizer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audit log: %w", err)
	}
	forward.Setup(&cfg.Forward, auditLog, logger)

	coordinator := reload.New(cfg.Reload.Timeout, logger)

	ctx, cleanupFn := context.WithCancel(context.Background())

	svc := &Service{
		config:      cfg,
		storage:     st,
		live:        live,
		versions:    versions,
		auditLog:    auditLog,
		sanitizer:   sanitizer,
		rules:       store.NewRules(),
		coordinator: coordinator,
		logger:      logger,
		startTime:   time.Now(),
		ctx:         ctx,
		cleanupFn:   cleanupFn,
	}

	if cfg.Reload.Redis.Enabled {
		broadcaster, err := reload.NewRedisBroadcaster(&cfg.Reload.Redis)
		if err != nil {
			logger.Error("failed to initialize redis reload broadcaster", zap.Error(err))
		} else {
			svc.broadcaster = broadcaster
			coordinator.Register("redis", broadcaster.Notify)
			logger.Info("redis reload broadcaster enabled",
				zap.String("addr", cfg.Reload.Redis.Addr))
		}
	}

	if cfg.Reload.Webhook.Enabled {
		notifier, err := reload.NewWebhookNotifier(&cfg.Reload.Webhook)
		if err != nil {
			logger.Error("failed to initialize webhook reload notifier", zap.Error(err))
		} else {
			coordinator.Register("webhook", notifier.Notify)
			logger.Info("webhook reload notifier enabled",
				zap.String("url", cfg.Reload.Webhook.URL))
		}
	}

	if cfg.Storage.EnablePruning {
		go svc.startPruneTask()
	}

	return svc, nil
}

// RegisterReloadListener exposes listener registration to the transport
// bootstrap
func (s *Service) RegisterReloadListener(name string, fn reload.ListenerFunc) {
	s.coordinator.Register(name, fn)
}

// Stop stops the service and cleans up resources
func (s *Service) Stop() error {
	s.cleanupFn()
	if s.broadcaster != nil {
		if err := s.broadcaster.Close(); err != nil {
			s.logger.Error("failed to close redis broadcaster", zap.Error(err))
		}
	}
	if err := s.auditLog.Close(); err != nil {
		s.logger.Error("failed to close audit forwarders", zap.Error(err))
	}
	return s.storage.Close()
}

// startPruneTask removes audit entries past the retention window
func (s *Service) startPruneTask() {
	ticker := time.NewTicker(s.config.Storage.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.config.Storage.AuditRetention)
			removed, err := s.storage.PruneAuditEntries(context.Background(), cutoff)
			if err != nil {
				s.logger.Error("failed to prune audit entries", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("pruned audit entries",
					zap.Int64("removed", removed),
					zap.Time("cutoff", cutoff))
			}
		}
	}
}

// notifyChange fires reload listeners after a committed mutation when the
// policy asks for it. Notification runs outside the mutation lock and
// never blocks the mutating request.
func (s *Service) notifyChange() {
	if !s.config.Reload.NotifyOnChange {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*s.config.Reload.Timeout)
		defer cancel()
		s.coordinator.ForceReload(ctx)
	}()
}
