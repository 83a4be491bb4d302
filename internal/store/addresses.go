package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// AddressExists reports whether the address belongs to the user. Address
// book CRUD is an external collaborator; only resolution is needed here.
func (s *Store) AddressExists(ctx context.Context, userID, addressID pgtype.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)`,
		addressID, userID).Scan(&exists)
	return exists, err
}
