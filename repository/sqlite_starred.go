package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/devchat/devchat/database"
	"github.com/devchat/devchat/models"
)

type sqliteStarredRepo struct {
	db database.TxQuerier
}

func NewSQLiteStarredRepo(db database.TxQuerier) StarredRepository {
	return &sqliteStarredRepo{db: db}
}

func (r *sqliteStarredRepo) Add(ctx context.Context, userID string, s *models.StarredChannel) (bool, error) {
	if s.StarredAt.IsZero() {
		s.StarredAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO starred_channels
			(user_id, channel_id, channel_name, channel_detail, created_by_name, created_by_avatar, starred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, channel_id) DO NOTHING`,
		userID, s.ChannelID, s.Name, s.Detail, s.CreatedBy.Name, s.CreatedBy.Avatar, s.StarredAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to star channel: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *sqliteStarredRepo) Remove(ctx context.Context, userID, channelID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM starred_channels WHERE user_id = ? AND channel_id = ?`, userID, channelID)
	if err != nil {
		return false, fmt.Errorf("failed to unstar channel: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *sqliteStarredRepo) List(ctx context.Context, userID string) ([]models.StarredChannel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT channel_id, channel_name, channel_detail, created_by_name, created_by_avatar, starred_at
		FROM starred_channels WHERE user_id = ?
		ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list starred channels: %w", err)
	}
	defer rows.Close()

	starred := []models.StarredChannel{}
	for rows.Next() {
		var s models.StarredChannel
		if err := rows.Scan(&s.ChannelID, &s.Name, &s.Detail,
			&s.CreatedBy.Name, &s.CreatedBy.Avatar, &s.StarredAt); err != nil {
			return nil, fmt.Errorf("failed to scan starred channel: %w", err)
		}
		starred = append(starred, s)
	}
	return starred, rows.Err()
}

func (r *sqliteStarredRepo) Exists(ctx context.Context, userID, channelID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM starred_channels WHERE user_id = ? AND channel_id = ?`,
		userID, channelID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check starred channel: %w", err)
	}
	return n > 0, nil
}
