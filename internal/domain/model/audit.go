package model

import "time"

// AuditAction identifies the credential operation an audit event records.
type AuditAction string

const (
	AuditActionSave  AuditAction = "save"
	AuditActionClear AuditAction = "clear"
)

// AuditOutcome classifies how a credential operation ended.
type AuditOutcome string

const (
	AuditOutcomeOK         AuditOutcome = "ok"
	AuditOutcomeRejected   AuditOutcome = "rejected"  // failed local validation
	AuditOutcomeNotFound   AuditOutcome = "not_found" // device or mapping missing
	AuditOutcomeGatewayErr AuditOutcome = "gateway_error"
)

// AuditEvent is one entry in the local append-only log of credential
// operations. The platform's store keeps no history, so this log is the only
// record of who changed what and when. Credential values are never included.
type AuditEvent struct {
	ID         string // uuid assigned at append time
	At         time.Time
	Action     AuditAction
	DeviceID   string
	DeviceName string
	Outcome    AuditOutcome
	Detail     string // human-readable context, e.g. the validation reason
}
