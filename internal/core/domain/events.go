package domain

import "time"

// LoginSucceededEvent reports a completed authentication.
type LoginSucceededEvent struct {
	EventID    string
	AccountID  string
	Role       Role
	OccurredAt time.Time
	IP         *string
	UserAgent  *string
	Metadata   map[string]any
}

// LoginFailedEvent reports a rejected authentication attempt.
type LoginFailedEvent struct {
	EventID        string
	AccountID      string
	Reason         string
	FailedAttempts int
	OccurredAt     time.Time
	IP             *string
	Metadata       map[string]any
}

// AccountLockedEvent reports a lockout engaging after repeated failures.
type AccountLockedEvent struct {
	EventID     string
	AccountID   string
	LockedUntil time.Time
	Attempts    int
	OccurredAt  time.Time
	Metadata    map[string]any
}

// PasswordChangedEvent reports a successful credential rotation.
type PasswordChangedEvent struct {
	EventID   string
	AccountID string
	ChangedBy string
	Forced    bool
	ChangedAt time.Time
	Metadata  map[string]any
}

// AccountCreatedEvent reports administrative account provisioning.
type AccountCreatedEvent struct {
	EventID   string
	AccountID string
	Role      Role
	CreatedBy string
	CreatedAt time.Time
	Metadata  map[string]any
}

// PasswordResetEvent reports an administrative temporary-password reset.
type PasswordResetEvent struct {
	EventID    string
	AccountID  string
	ResetBy    string
	OccurredAt time.Time
	Metadata   map[string]any
}
