// Package audit provides the audit trail for preference operations.
//
// The Logger implements prefs.AuditLogger: every get, set, delete,
// clear, encrypt, decrypt, and validate performed by the injector is
// recorded. Entries are held in a bounded in-memory buffer (oldest
// dropped first) and mirrored to the structured log, so operators get
// both a queryable recent history and a durable log stream.
//
// # Usage
//
//	logger := audit.New(1000, zapLogger)
//	injector := prefs.NewInjector(prefs.Config{Audit: logger, ...})
//
//	// Later, inspect recent writes to one key:
//	entries := logger.Entries(audit.Filter{Action: prefs.AuditSet, Key: "theme"})
package audit
