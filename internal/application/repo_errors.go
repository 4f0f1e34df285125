package application

import (
	"errors"

	"github.com/example/eventrsvp/internal/persistence"
)

// mapRepoError translates persistence failures into application sentinels.
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, ErrAlreadyExists) || errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		return ErrNotFound
	}
	return err
}
