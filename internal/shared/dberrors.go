// Package shared provides common utilities used across the codebase.
//
//nolint:revive // "shared" is an intentional package name for cross-cutting helpers.
package shared

import "strings"

// IsUniqueViolation checks if the error is a unique-constraint violation.
// Both SQLite and Postgres mention "unique" in the message; MySQL-style
// drivers say "duplicate".
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// IsForeignKeyViolation checks if the error is a foreign-key constraint
// violation, i.e. a row references a parent that does not exist.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key")
}

// IsNotNullViolation checks if the error is a NOT NULL constraint violation.
func IsNotNullViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not null") ||
		strings.Contains(msg, "not-null") ||
		strings.Contains(msg, "null value")
}

// IsBusyError checks if the error is a transient lock/busy error that
// typically warrants retry logic.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
