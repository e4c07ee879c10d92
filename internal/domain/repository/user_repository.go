package repository

import (
	"context"

	"agrolink/internal/domain/entity"
)

// UserRepository is the identity collaborator: the chat core only ever
// reads users for existence checks and display enrichment.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

// ListingRepository supplies the listing context used to pre-fill a
// quotation; listing lifecycle is owned by the marketplace subsystem.
type ListingRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Listing, error)
}
