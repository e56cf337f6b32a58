package store

import (
	"fmt"

	"custodia/internal/domain"
)

// validKey restricts record names to [a-z0-9._-] so they are safe file names.
func validKey(key domain.RecordKey) error {
	if key == "" {
		return fmt.Errorf("store: empty record key")
	}
	for _, r := range key.String() {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
		default:
			return fmt.Errorf("store: invalid record key %q", key)
		}
	}
	return nil
}
