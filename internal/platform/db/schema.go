package db

import (
	"fmt"
	"regexp"
)

var schemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)

// ValidateSchemaName rejects schema names that are not plain identifiers.
// An empty name selects DefaultSchema.
func ValidateSchemaName(schema string) error {
	if schema == "" {
		return nil
	}
	if !schemaNamePattern.MatchString(schema) {
		return fmt.Errorf("invalid schema name: %q", schema)
	}
	return nil
}
