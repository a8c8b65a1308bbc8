package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/devchat/devchat/database"
	"github.com/devchat/devchat/models"
)

type sqliteColorRepo struct {
	db database.TxQuerier
}

func NewSQLiteColorRepo(db database.TxQuerier) ColorRepository {
	return &sqliteColorRepo{db: db}
}

func (r *sqliteColorRepo) Create(ctx context.Context, c *models.ColorTheme) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_colors (id, user_id, primary_color, secondary_color, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Primary, c.Secondary, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save color theme: %w", err)
	}
	return nil
}

func (r *sqliteColorRepo) ListByUser(ctx context.Context, userID string) ([]models.ColorTheme, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, primary_color, secondary_color, created_at
		FROM user_colors WHERE user_id = ?
		ORDER BY rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list color themes: %w", err)
	}
	defer rows.Close()

	colors := []models.ColorTheme{}
	for rows.Next() {
		var c models.ColorTheme
		if err := rows.Scan(&c.ID, &c.UserID, &c.Primary, &c.Secondary, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan color theme: %w", err)
		}
		colors = append(colors, c)
	}
	return colors, rows.Err()
}
