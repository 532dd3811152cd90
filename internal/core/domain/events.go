package domain

import "time"

// Audit action tags emitted by the protection engine. Every state transition
// in the tracker, session manager, and orchestrator produces one entry.
const (
	AuditActionLoginSucceeded   = "auth.login.succeeded"
	AuditActionLoginFailed      = "auth.login.failed"
	AuditActionLoginRejected    = "auth.login.rejected"
	AuditActionLockoutTemporary = "auth.lockout.temporary"
	AuditActionLockoutPermanent = "auth.lockout.permanent"
	AuditActionAdminUnlock      = "auth.lockout.admin_unlock"
	AuditActionSessionCreated   = "session.created"
	AuditActionSessionRenewed   = "session.renewed"
	AuditActionSessionRevoked   = "session.revoked"
	AuditActionSessionsRevoked  = "session.revoked_all"
	AuditActionMfaIssued        = "mfa.challenge.issued"
	AuditActionMfaVerified      = "mfa.challenge.verified"
	AuditActionMfaFailed        = "mfa.challenge.failed"
	AuditActionMfaExhausted     = "mfa.challenge.exhausted"
	AuditActionPasswordChanged  = "credential.password.changed"
	AuditActionConfigUpdated    = "security_config.updated"
)

// AuditEntry is one structured activity log line handed to the audit
// collaborator. ActorID is nil for anonymous or pre-authentication events.
type AuditEntry struct {
	EventID string
	ActorID *string
	Action  string
	Detail  string
	IP      *string
	At      time.Time
}

// NotificationKind names the outbound email triggers this core emits.
type NotificationKind string

const (
	NotificationOTPCode         NotificationKind = "otp_code"
	NotificationPasswordChanged NotificationKind = "password_changed"
)

// Notification is a fire-and-forget outbound email request.
type Notification struct {
	Kind      NotificationKind
	Recipient string
	Code      string
	ExpiresAt time.Time
}
