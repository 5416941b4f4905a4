// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/routeintel/fleetpanel/internal/domain/model"
	"github.com/routeintel/fleetpanel/internal/observability"
)

// ErrViewNotReady is returned when an operation needs the reconciled view
// before the first successful reconciliation has produced one.
var ErrViewNotReady = errors.New("reconciled view not yet available")

// refreshRequest represents a manual reconciliation trigger.
type refreshRequest struct {
	done chan error
}

// ReconcileService owns the reconciled view of the fleet: the active device
// list joined with the credential mappings stored on the platform. It rebuilds
// the view wholesale on an interval and on demand, keeping cached device
// names in the mapping records converged with the platform's live names.
type ReconcileService struct {
	provider  *PlatformClientProvider
	interval  time.Duration
	refreshCh chan refreshRequest

	mu   sync.RWMutex
	view *model.View
}

// NewReconcileService creates a new ReconcileService. The view starts empty;
// callers see ErrViewNotReady until the first pass succeeds.
func NewReconcileService(provider *PlatformClientProvider, interval time.Duration) *ReconcileService {
	return &ReconcileService{
		provider:  provider,
		interval:  interval,
		refreshCh: make(chan refreshRequest),
	}
}

// Start begins the reconciliation loop. It runs an immediate pass, then
// reconciles on the configured interval, and services manual refresh
// requests. Start blocks until the context is canceled.
func (s *ReconcileService) Start(ctx context.Context) {
	if err := s.reconcile(ctx); err != nil {
		s.logPassFailure(err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconcile service stopped")
			return
		case <-ticker.C:
			if err := s.reconcile(ctx); err != nil {
				s.logPassFailure(err)
			}
		case req := <-s.refreshCh:
			req.done <- s.reconcile(ctx)
		}
	}
}

// Refresh triggers a reconciliation pass, bypassing the interval. It blocks
// until the pass completes or the context is canceled. Passes are serialized
// through the loop, so a Refresh never races a ticker-driven pass.
func (s *ReconcileService) Refresh(ctx context.Context) error {
	done := make(chan error, 1)

	select {
	case s.refreshCh <- refreshRequest{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrentView returns the most recently built view, or nil before the first
// successful pass. The returned view is a snapshot and must not be mutated.
func (s *ReconcileService) CurrentView() *model.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// logPassFailure keeps unconfigured-credential noise at debug level while
// real failures surface as errors.
func (s *ReconcileService) logPassFailure(err error) {
	if errors.Is(err, ErrPlatformNotConfigured) {
		slog.Debug("reconciliation skipped", "reason", err)
		return
	}
	slog.Error("reconciliation failed", "error", err)
}

// reconcile performs one full pass: fetch devices and mappings, push staged
// name syncs back to the platform, and swap in a freshly built view.
func (s *ReconcileService) reconcile(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observability.ObserveReconcile(time.Since(start), err) }()

	client := s.provider.Get()
	if client == nil {
		return ErrPlatformNotConfigured
	}

	devices, err := client.FetchDevices(ctx)
	if err != nil {
		return err
	}

	mappings, err := client.FetchMappings(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	active := make([]model.Device, 0, len(devices))
	deviceByID := make(map[string]model.Device, len(devices))
	for _, d := range devices {
		if d.Retired(now) {
			continue
		}
		active = append(active, d)
		deviceByID[d.ID] = d
	}

	// Stage name syncs for mappings whose cached device name drifted.
	// Placeholder mappings are synced too; they only drop out of the view.
	var staged []model.Mapping
	for _, m := range mappings {
		device, ok := deviceByID[m.DeviceID]
		if !ok || m.DeviceName == device.Name {
			continue
		}
		update := m
		update.DeviceName = device.Name
		update.LastModified = now
		staged = append(staged, update)
	}

	// Writes go out one at a time; a failed sync is retried next pass.
	var synced int
	for _, update := range staged {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := client.UpdateMapping(ctx, update); err != nil {
			slog.Error("name sync failed", "mapping", update.ID, "device", update.DeviceID, "error", err)
			continue
		}
		synced++
		observability.NameSyncs.Inc()
	}

	// Successful writes invalidated the version tokens we hold; re-fetch so
	// the view carries tokens a later save can echo back.
	if synced > 0 {
		mappings, err = client.FetchMappings(ctx)
		if err != nil {
			return err
		}
	}

	view := buildView(now, active, mappings)

	s.mu.Lock()
	s.view = view
	s.mu.Unlock()

	slog.Info("reconciliation complete",
		"devices", len(active),
		"mapped", len(view.Mappings),
		"name_syncs", synced,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// buildView assembles the immutable view: active devices sorted by display
// name, and non-placeholder, non-orphaned mappings indexed by device id.
func buildView(now time.Time, active []model.Device, mappings []model.Mapping) *model.View {
	devices := make([]model.Device, len(active))
	copy(devices, active)
	sort.Slice(devices, func(i, j int) bool {
		a, b := strings.ToLower(devices[i].Name), strings.ToLower(devices[j].Name)
		if a != b {
			return a < b
		}
		return devices[i].ID < devices[j].ID
	})

	activeIDs := make(map[string]bool, len(devices))
	for _, d := range devices {
		activeIDs[d.ID] = true
	}

	byDevice := make(map[string]model.Mapping)
	for _, m := range mappings {
		if m.Placeholder() || !activeIDs[m.DeviceID] {
			continue
		}
		if existing, ok := byDevice[m.DeviceID]; ok {
			// Duplicate records for one device; keep the newest.
			if !m.LastModified.After(existing.LastModified) {
				slog.Warn("duplicate mapping records for device", "device", m.DeviceID, "kept", existing.ID, "dropped", m.ID)
				continue
			}
			slog.Warn("duplicate mapping records for device", "device", m.DeviceID, "kept", m.ID, "dropped", existing.ID)
		}
		byDevice[m.DeviceID] = m
	}

	return &model.View{
		GeneratedAt: now,
		Devices:     devices,
		Mappings:    byDevice,
	}
}
