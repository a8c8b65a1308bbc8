package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devchat/devchat/database"
	"github.com/devchat/devchat/models"
)

type sqliteMessageRepo struct {
	db database.TxQuerier
}

func NewSQLiteMessageRepo(db database.TxQuerier) MessageRepository {
	return &sqliteMessageRepo{db: db}
}

const messageColumns = `id, scope, channel_key, user_id, user_name, user_avatar, content, image_url, created_at`

func (r *sqliteMessageRepo) Create(ctx context.Context, m *models.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Scope, m.ChannelKey, m.User.ID, m.User.Name, m.User.Avatar,
		m.Content, m.Image, m.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// List pages backwards by rowid, which is the insertion order. Timestamps
// can tie within the same instant, rowids cannot.
func (r *sqliteMessageRepo) List(ctx context.Context, target models.MessageTarget, beforeID string, limit int) ([]models.Message, error) {
	var query string
	var args []any

	if beforeID == "" {
		query = `
			SELECT ` + messageColumns + ` FROM messages
			WHERE scope = ? AND channel_key = ?
			ORDER BY rowid DESC
			LIMIT ?`
		args = []any{target.Scope, target.Key, limit}
	} else {
		query = `
			SELECT ` + messageColumns + ` FROM messages
			WHERE scope = ? AND channel_key = ?
			  AND rowid < (SELECT rowid FROM messages WHERE id = ?)
			ORDER BY rowid DESC
			LIMIT ?`
		args = []any{target.Scope, target.Key, beforeID, limit}
	}

	messages, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	// Newest-first from SQL, oldest-first for the caller.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *sqliteMessageRepo) ListAll(ctx context.Context, target models.MessageTarget) ([]models.Message, error) {
	return r.query(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE scope = ? AND channel_key = ?
		ORDER BY rowid`, target.Scope, target.Key)
}

func (r *sqliteMessageRepo) Count(ctx context.Context, target models.MessageTarget) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE scope = ? AND channel_key = ?`,
		target.Scope, target.Key).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func (r *sqliteMessageRepo) UserPostCounts(ctx context.Context, target models.MessageTarget) ([]models.UserPostCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.user_name, COUNT(*),
		       (SELECT l.user_avatar FROM messages l
		        WHERE l.scope = m.scope AND l.channel_key = m.channel_key AND l.user_name = m.user_name
		        ORDER BY l.rowid DESC LIMIT 1)
		FROM messages m
		WHERE m.scope = ? AND m.channel_key = ?
		GROUP BY m.user_name
		ORDER BY MIN(m.rowid)`, target.Scope, target.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to count user posts: %w", err)
	}
	defer rows.Close()

	posts := []models.UserPostCount{}
	for rows.Next() {
		var p models.UserPostCount
		if err := rows.Scan(&p.Name, &p.Count, &p.Avatar); err != nil {
			return nil, fmt.Errorf("failed to scan user post count: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *sqliteMessageRepo) query(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		var content, image sql.NullString
		if err := rows.Scan(&m.ID, &m.Scope, &m.ChannelKey, &m.User.ID, &m.User.Name,
			&m.User.Avatar, &content, &image, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if content.Valid {
			m.Content = &content.String
		}
		if image.Valid {
			m.Image = &image.String
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}
