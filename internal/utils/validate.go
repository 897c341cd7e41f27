package utils

import "github.com/google/uuid"

// IsUUID reports whether s parses as a UUID, used to reject malformed path
// params before they reach a store query.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
