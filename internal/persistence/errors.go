package persistence

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateKey is matched by a StoreError caused by a unique index violation.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNilEntity is returned when a nil entity is passed to a write.
	ErrNilEntity = errors.New("nil entity")
	// ErrIdentityField is returned when an update addresses the identity field.
	ErrIdentityField = errors.New("identity field can not be updated")
)

// ConfigurationError reports store settings that are missing at construction.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "persistence configuration missing: " + strings.Join(e.Missing, ", ")
}

// ConnectionError wraps a failure to reach the backing store at construction.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return "persistence connection: " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// StoreError is a single write or query rejected by the backing store.
type StoreError struct {
	Op         string
	Collection string
	ID         string
	Field      string
	Err        error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Op, e.Collection)
	if e.ID != "" {
		fmt.Fprintf(&b, " id=%s", e.ID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.Err }
