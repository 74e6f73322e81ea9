package model

import (
	"errors"
	"fmt"
)

// ErrInvalidIdentifier is returned when a schema name violates PostgreSQL
// identifier rules. Validation happens before any namespace is created.
var ErrInvalidIdentifier = errors.New("invalid schema identifier")

// maxIdentifierLen is the PostgreSQL identifier limit (NAMEDATALEN-1).
const maxIdentifierLen = 63

// reservedSchemaNames can never be used as tenant schema names. They either
// already exist in every database or are claimed by the platform.
var reservedSchemaNames = map[string]bool{
	"public":             true,
	"information_schema": true,
	"pg_catalog":         true,
	"pg_toast":           true,
	"shared":             true,
	"template0":          true,
	"template1":          true,
}

// ValidateSchemaName checks that name is usable as an isolated tenant schema:
// lowercase alphanumeric plus underscore, starting with a letter or
// underscore, at most 63 bytes, not reserved and not prefixed with pg_.
func ValidateSchemaName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidIdentifier, name, maxIdentifierLen)
	}
	for i, r := range name {
		if r >= 'a' && r <= 'z' || r == '_' {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return fmt.Errorf("%w: %q contains %q at position %d", ErrInvalidIdentifier, name, r, i)
	}
	if reservedSchemaNames[name] {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidIdentifier, name)
	}
	if len(name) >= 3 && name[:3] == "pg_" {
		return fmt.Errorf("%w: %q uses the reserved pg_ prefix", ErrInvalidIdentifier, name)
	}
	return nil
}
