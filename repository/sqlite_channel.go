package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/devchat/devchat/database"
	"github.com/devchat/devchat/models"
	"github.com/devchat/devchat/pkg"
)

type sqliteChannelRepo struct {
	db database.TxQuerier
}

func NewSQLiteChannelRepo(db database.TxQuerier) ChannelRepository {
	return &sqliteChannelRepo{db: db}
}

const channelColumns = `id, name, detail, created_by_id, created_by_name, created_by_avatar, created_at`

func scanChannel(row interface{ Scan(...any) error }) (*models.Channel, error) {
	c := &models.Channel{}
	err := row.Scan(&c.ID, &c.Name, &c.Detail, &c.CreatedByID,
		&c.CreatedBy.Name, &c.CreatedBy.Avatar, &c.CreatedAt)
	return c, err
}

func (r *sqliteChannelRepo) Create(ctx context.Context, channel *models.Channel) error {
	if channel.CreatedAt.IsZero() {
		channel.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO channels (`+channelColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		channel.ID, channel.Name, channel.Detail, channel.CreatedByID,
		channel.CreatedBy.Name, channel.CreatedBy.Avatar, channel.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: channel id already used", pkg.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create channel: %w", err)
	}
	return nil
}

func (r *sqliteChannelRepo) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	c, err := scanChannel(r.db.QueryRowContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return c, nil
}

func (r *sqliteChannelRepo) List(ctx context.Context) ([]models.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels = append(channels, *c)
	}
	return channels, rows.Err()
}
