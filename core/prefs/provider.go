package prefs

import (
	"context"
	"time"
)

// Provider wraps one source of preference data (memory, file,
// environment, database, object storage, remote API). The injector
// treats every provider as an independent source of truth; only the
// priority assigned at construction makes one authoritative over
// another. Implementations must be safe for concurrent use.
type Provider interface {
	// Name is the stable identity used in metadata sources and logs.
	Name() string
	// Priority is the band assigned at construction.
	Priority() Priority
	// Initialize prepares the underlying source (opens files, verifies
	// buckets, migrates tables).
	Initialize(ctx context.Context) error
	// Get returns the record for key. A miss is (Metadata{}, false, nil);
	// errors are reserved for operational failures.
	Get(ctx context.Context, key string) (Metadata, bool, error)
	// GetAll returns every record the provider holds, keyed by key.
	GetAll(ctx context.Context) (map[string]Metadata, error)
	// Set stores value under key.
	Set(ctx context.Context, key string, value Value) error
	// Has reports whether the provider holds key.
	Has(ctx context.Context, key string) (bool, error)
	// Delete removes key, reporting whether something was removed.
	Delete(ctx context.Context, key string) (bool, error)
	// Clear removes every record.
	Clear(ctx context.Context) error
}

// ValidationResult is the outcome of validating one (key, value) pair.
type ValidationResult struct {
	Valid  bool        `json:"valid"`
	Errors []RuleError `json:"errors,omitempty"`
}

// Validator checks values before they are written. An error return
// means the validator itself failed, not that the value is invalid.
type Validator interface {
	Validate(ctx context.Context, key string, value Value) (ValidationResult, error)
}

// EncryptionService wraps and unwraps string values. IsEncrypted is a
// pure recognition predicate (typically a fixed prefix marker) so the
// injector can gate decryption without a round trip.
type EncryptionService interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
	IsEncrypted(s string) bool
}

// NoopEncryption is the pass-through used when no encryption service is
// configured: encrypt and decrypt are identity, IsEncrypted is always
// false.
type NoopEncryption struct{}

func (NoopEncryption) Encrypt(_ context.Context, plaintext string) (string, error) {
	return plaintext, nil
}

func (NoopEncryption) Decrypt(_ context.Context, ciphertext string) (string, error) {
	return ciphertext, nil
}

func (NoopEncryption) IsEncrypted(string) bool { return false }

// AuditAction is the kind of operation an audit entry records.
type AuditAction string

const (
	AuditGet      AuditAction = "GET"
	AuditSet      AuditAction = "SET"
	AuditDelete   AuditAction = "DELETE"
	AuditClear    AuditAction = "CLEAR"
	AuditEncrypt  AuditAction = "ENCRYPT"
	AuditDecrypt  AuditAction = "DECRYPT"
	AuditValidate AuditAction = "VALIDATE"
)

// AuditEntry describes one audited operation. Old/new values are
// pointers so "no value" and "null value" stay distinguishable.
type AuditEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Action    AuditAction `json:"action"`
	Key       string      `json:"key"`
	OldValue  *Value      `json:"old_value,omitempty"`
	NewValue  *Value      `json:"new_value,omitempty"`
	Source    string      `json:"source"`
}

// AuditLogger receives audit entries. Log is fire-and-forget: it must
// not block the operation being audited and must never return an error
// path into it.
type AuditLogger interface {
	Log(entry AuditEntry)
}

type noopAudit struct{}

func (noopAudit) Log(AuditEntry) {}
