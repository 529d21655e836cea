package userRepo

import (
	"context"

	"coursebook/models"
)

// UserRepository defines the read access the booking flows need on accounts.
type UserRepository interface {
	// GetByID retrieves a user by its unique ID.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDs retrieves several users at once, skipping unknown ids.
	GetByIDs(ctx context.Context, ids []string) ([]models.User, error)
}
