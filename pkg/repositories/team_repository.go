package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/datagrade-io/datagrade-engine/pkg/database"
)

// TeamRepository resolves team membership for authorization checks.
type TeamRepository interface {
	// IsTeamAdmin reports whether the user holds the admin role on the team.
	IsTeamAdmin(ctx context.Context, userID, teamID uuid.UUID) (bool, error)
}

// teamRepository implements TeamRepository using PostgreSQL.
type teamRepository struct {
	db *database.DB
}

// NewTeamRepository creates a new team repository.
func NewTeamRepository(db *database.DB) TeamRepository {
	return &teamRepository{db: db}
}

// IsTeamAdmin checks for an admin membership row.
func (r *teamRepository) IsTeamAdmin(ctx context.Context, userID, teamID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM team_members
			WHERE team_id = $1 AND user_id = $2 AND role = 'admin'
		)`

	var isAdmin bool
	if err := r.db.QueryRow(ctx, query, teamID, userID).Scan(&isAdmin); err != nil {
		return false, fmt.Errorf("failed to check team admin: %w", err)
	}

	return isAdmin, nil
}
