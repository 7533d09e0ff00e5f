package prefs

import (
	"errors"
	"fmt"
	"strings"
)

// NotFoundError reports that a key was absent across all providers and
// no default was supplied.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("preference not found: %s", e.Key)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// RuleError is one failed validation rule.
type RuleError struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries the per-rule failures of a rejected write.
type ValidationError struct {
	Key    string
	Errors []RuleError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, re := range e.Errors {
		msgs[i] = re.Rule + ": " + re.Message
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Key, strings.Join(msgs, "; "))
}

// ConflictError reports an ambiguous resolution under the error
// strategy, or a resolver invoked with no candidates.
type ConflictError struct {
	Key     string
	Sources []string
}

func (e *ConflictError) Error() string {
	if len(e.Sources) == 0 {
		return "conflict resolution requires at least one record"
	}
	return fmt.Sprintf("conflicting values for %s from sources [%s]", e.Key, strings.Join(e.Sources, ", "))
}

// EncryptionError wraps a failure to encrypt or decrypt a value.
type EncryptionError struct {
	Op  string // "encrypt" or "decrypt"
	Err error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// ProviderInitError reports that a provider failed to come up.
type ProviderInitError struct {
	Provider string
	Err      error
}

func (e *ProviderInitError) Error() string {
	return fmt.Sprintf("provider %s failed to initialize: %v", e.Provider, e.Err)
}

func (e *ProviderInitError) Unwrap() error { return e.Err }

// ProviderOpError reports a failed provider operation.
type ProviderOpError struct {
	Provider string
	Op       string
	Key      string
	Err      error
}

func (e *ProviderOpError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("provider %s: %s %q: %v", e.Provider, e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderOpError) Unwrap() error { return e.Err }

// ConfigError reports an unrecognized strategy or malformed options.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}
