package models

import (
	"github.com/google/uuid"
)

// assignID gives a new record a UUID unless the caller already chose one (seed data does).
func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
