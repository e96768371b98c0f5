// Package reload notifies registered subsystems that the live
// configuration changed so they can refresh derived state.
package reload

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ListenerFunc reacts to a configuration change
type ListenerFunc func(ctx context.Context) error

// ListenerResult reports the outcome for one listener
type ListenerResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Result aggregates one notification round
type Result struct {
	Notified int              `json:"notified"`
	Failed   int              `json:"failed"`
	Results  []ListenerResult `json:"results"`
}

// Coordinator fans configuration-change notifications out to listeners.
// Listeners run concurrently with a per-listener timeout; one slow or
// failing listener never blocks the others. Notification is idempotent,
// firing with an unchanged store is safe.
type Coordinator struct {
	logger  *zap.Logger
	timeout time.Duration

	mu        sync.RWMutex
	listeners map[string]ListenerFunc
}

// New creates a coordinator with the given per-listener timeout
func New(timeout time.Duration, logger *zap.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Coordinator{
		logger:    logger,
		timeout:   timeout,
		listeners: make(map[string]ListenerFunc),
	}
}

// Register adds a named listener; a listener registered twice under the
// same name is replaced
func (c *Coordinator) Register(name string, fn ListenerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[name] = fn
}

// Unregister removes a listener
func (c *Coordinator) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, name)
}

// ForceReload notifies every listener and collects per-listener results
func (c *Coordinator) ForceReload(ctx context.Context) *Result {
	c.mu.RLock()
	listeners := make(map[string]ListenerFunc, len(c.listeners))
	for name, fn := range c.listeners {
		listeners[name] = fn
	}
	c.mu.RUnlock()

	results := make([]ListenerResult, 0, len(listeners))
	resultCh := make(chan ListenerResult, len(listeners))

	var wg sync.WaitGroup
	for name, fn := range listeners {
		wg.Add(1)
		go func(name string, fn ListenerFunc) {
			defer wg.Done()

			lctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			if err := c.notify(lctx, fn); err != nil {
				c.logger.Warn("reload listener failed",
					zap.String("listener", name),
					zap.Error(err))
				resultCh <- ListenerResult{Name: name, Success: false, Error: err.Error()}
				return
			}
			resultCh <- ListenerResult{Name: name, Success: true}
		}(name, fn)
	}
	wg.Wait()
	close(resultCh)

	result := &Result{}
	for r := range resultCh {
		results = append(results, r)
		result.Notified++
		if !r.Success {
			result.Failed++
		}
	}
	result.Results = results

	return result
}

// notify invokes the listener, converting a timeout into its error
func (c *Coordinator) notify(ctx context.Context, fn ListenerFunc) error {
	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListenerCount returns the number of registered listeners
func (c *Coordinator) ListenerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.listeners)
}
