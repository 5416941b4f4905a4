package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/routeintel/fleetpanel/internal/domain/model"
	"github.com/routeintel/fleetpanel/internal/domain/port/driven"
	"github.com/routeintel/fleetpanel/internal/observability"
)

// CredentialService implements the save and clear operations on credential
// mappings. Every attempt, successful or not, is recorded in the audit log.
//
// Writes are advisory-validated against the reconciled view, then issued
// against freshly fetched records so the platform's current version tokens
// are echoed back. The race between validate and write is accepted; the
// platform store offers no transactions.
type CredentialService struct {
	provider   *PlatformClientProvider
	reconciler *ReconcileService
	audit      driven.AuditStore
}

// NewCredentialService creates a new CredentialService.
func NewCredentialService(provider *PlatformClientProvider, reconciler *ReconcileService, audit driven.AuditStore) *CredentialService {
	return &CredentialService{
		provider:   provider,
		reconciler: reconciler,
		audit:      audit,
	}
}

// Save validates the candidate credentials and writes them to the device's
// mapping record, creating the record if none exists. A placeholder record
// left behind by an earlier clear is reused, never duplicated.
func (s *CredentialService) Save(ctx context.Context, deviceID string, candidate model.Credentials) (err error) {
	defer func() { observability.ObserveCredentialWrite("save", err) }()

	client := s.provider.Get()
	if client == nil {
		return ErrPlatformNotConfigured
	}

	if verr := ValidateCredentials(candidate); verr != nil {
		s.recordAudit(ctx, model.AuditActionSave, deviceID, "", model.AuditOutcomeRejected, verr.Error())
		return verr
	}

	view, err := s.currentView(ctx)
	if err != nil {
		return err
	}

	if verr := FindConflict(view, deviceID, candidate); verr != nil {
		s.recordAudit(ctx, model.AuditActionSave, deviceID, viewDeviceName(view, deviceID), model.AuditOutcomeRejected, verr.Error())
		return verr
	}

	// Serial number and display name are taken from a fresh device fetch,
	// not from the possibly stale view.
	device, err := client.FetchDevice(ctx, deviceID)
	if err != nil {
		s.recordAudit(ctx, model.AuditActionSave, deviceID, viewDeviceName(view, deviceID), model.AuditOutcomeGatewayErr, err.Error())
		return err
	}
	if device == nil || device.Retired(time.Now().UTC()) {
		s.recordAudit(ctx, model.AuditActionSave, deviceID, viewDeviceName(view, deviceID), model.AuditOutcomeNotFound, "device not active")
		return &model.NotFoundError{Resource: "device", ID: deviceID}
	}

	records, err := client.FetchMappings(ctx)
	if err != nil {
		s.recordAudit(ctx, model.AuditActionSave, deviceID, device.Name, model.AuditOutcomeGatewayErr, err.Error())
		return err
	}

	now := time.Now().UTC()
	detail := "updated"
	if existing := latestRecordFor(records, deviceID); existing != nil {
		update := *existing
		update.Credentials = candidate
		update.DeviceName = device.Name
		update.SerialNumber = device.SerialNumber
		update.LastModified = now
		err = client.UpdateMapping(ctx, update)
	} else {
		detail = "created"
		_, err = client.CreateMapping(ctx, model.Mapping{
			DeviceID:     deviceID,
			DeviceName:   device.Name,
			SerialNumber: device.SerialNumber,
			Credentials:  candidate,
			LastModified: now,
		})
	}
	if err != nil {
		s.recordAudit(ctx, model.AuditActionSave, deviceID, device.Name, model.AuditOutcomeGatewayErr, err.Error())
		return err
	}

	s.recordAudit(ctx, model.AuditActionSave, deviceID, device.Name, model.AuditOutcomeOK, detail)
	s.refreshView(ctx)
	return nil
}

// Clear resets the device's mapping record back to placeholder sentinels.
// The record itself is kept alive; clearing an already cleared mapping is a
// no-op that succeeds.
func (s *CredentialService) Clear(ctx context.Context, deviceID string) (err error) {
	defer func() { observability.ObserveCredentialWrite("clear", err) }()

	client := s.provider.Get()
	if client == nil {
		return ErrPlatformNotConfigured
	}

	records, err := client.FetchMappings(ctx)
	if err != nil {
		s.recordAudit(ctx, model.AuditActionClear, deviceID, "", model.AuditOutcomeGatewayErr, err.Error())
		return err
	}

	existing := latestRecordFor(records, deviceID)
	if existing == nil {
		s.recordAudit(ctx, model.AuditActionClear, deviceID, "", model.AuditOutcomeNotFound, "no mapping record")
		return &model.NotFoundError{Resource: "mapping", ID: deviceID}
	}

	update := *existing
	update.Credentials = model.Credentials{}
	update.LastModified = time.Now().UTC()

	// Opportunistic cache refresh; a vanished device still gets cleared.
	device, err := client.FetchDevice(ctx, deviceID)
	if err != nil {
		s.recordAudit(ctx, model.AuditActionClear, deviceID, update.DeviceName, model.AuditOutcomeGatewayErr, err.Error())
		return err
	}
	if device != nil {
		update.DeviceName = device.Name
		update.SerialNumber = device.SerialNumber
	}

	if err = client.UpdateMapping(ctx, update); err != nil {
		s.recordAudit(ctx, model.AuditActionClear, deviceID, update.DeviceName, model.AuditOutcomeGatewayErr, err.Error())
		return err
	}

	s.recordAudit(ctx, model.AuditActionClear, deviceID, update.DeviceName, model.AuditOutcomeOK, "")
	s.refreshView(ctx)
	return nil
}

// currentView returns the reconciled view, forcing a pass if none exists yet.
func (s *CredentialService) currentView(ctx context.Context) (*model.View, error) {
	if view := s.reconciler.CurrentView(); view != nil {
		return view, nil
	}
	if err := s.reconciler.Refresh(ctx); err != nil {
		return nil, err
	}
	if view := s.reconciler.CurrentView(); view != nil {
		return view, nil
	}
	return nil, ErrViewNotReady
}

// refreshView reconciles after a successful write so the next read shows it.
// The write already succeeded, so a refresh failure is logged, not returned.
func (s *CredentialService) refreshView(ctx context.Context) {
	if err := s.reconciler.Refresh(ctx); err != nil {
		slog.Warn("post-write refresh failed", "error", err)
	}
}

// recordAudit appends one audit event. Auditing is best-effort; failures are
// logged and never fail the operation being audited.
func (s *CredentialService) recordAudit(ctx context.Context, action model.AuditAction, deviceID, deviceName string, outcome model.AuditOutcome, detail string) {
	if s.audit == nil {
		return
	}
	event := model.AuditEvent{
		ID:         uuid.NewString(),
		At:         time.Now().UTC(),
		Action:     action,
		DeviceID:   deviceID,
		DeviceName: deviceName,
		Outcome:    outcome,
		Detail:     detail,
	}
	if err := s.audit.Append(ctx, event); err != nil {
		slog.Warn("audit append failed", "action", action, "device", deviceID, "error", err)
	}
}

// latestRecordFor finds the device's mapping record, placeholder or not.
// When duplicates exist the newest record wins, matching the view builder.
func latestRecordFor(records []model.Mapping, deviceID string) *model.Mapping {
	var found *model.Mapping
	for i := range records {
		if records[i].DeviceID != deviceID {
			continue
		}
		if found == nil || records[i].LastModified.After(found.LastModified) {
			found = &records[i]
		}
	}
	return found
}

// viewDeviceName resolves a display name for audit entries from whatever the
// view knows; empty when the device is unknown.
func viewDeviceName(view *model.View, deviceID string) string {
	if view == nil {
		return ""
	}
	if m, ok := view.MappingFor(deviceID); ok {
		return m.DeviceName
	}
	for _, d := range view.Devices {
		if d.ID == deviceID {
			return d.Name
		}
	}
	return ""
}
