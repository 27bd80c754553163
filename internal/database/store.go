package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Store defines the persistence operations used by the bot.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage inserts a new message record.
	SaveMessage(ctx context.Context, message *Message) error

	// GetRecentMessagesInChat returns up to limit of the newest messages of a chat, newest first.
	GetRecentMessagesInChat(ctx context.Context, chatID int64, limit int) ([]Message, error)

	// ChatMembers maps each display name seen in a chat to its latest user id.
	ChatMembers(ctx context.Context, chatID int64) (map[string]int64, error)

	// DeleteMessagesBefore removes messages older than cutoff and reports how many were deleted.
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// SaveSticker inserts a sticker or updates the one with the same name.
	SaveSticker(ctx context.Context, sticker *Sticker) error

	// GetStickerByName returns the named sticker. Returns nil, nil if not found.
	GetStickerByName(ctx context.Context, name string) (*Sticker, error)

	// ListStickerNames returns every sticker name in alphabetical order.
	ListStickerNames(ctx context.Context) ([]string, error)
}

// sqlxStore implements Store with sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by a connected sqlx.DB.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveMessage validates and inserts message inside a transaction.
func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return errors.New("cannot save nil message")
	}
	if message.ChatID == 0 {
		return errors.New("message must have a non-zero chat_id")
	}
	if message.UserID == 0 {
		return errors.New("message must have a non-zero user_id")
	}
	if message.Content == "" {
		return errors.New("message must have non-empty content")
	}
	if message.Timestamp.IsZero() {
		return errors.New("message must have a non-zero timestamp")
	}

	// Timestamps are stored as text; UTC keeps their ordering chronological.
	now := time.Now().UTC()
	message.Timestamp = message.Timestamp.UTC()
	message.CreatedAt = now
	message.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	query := `
        INSERT INTO messages (chat_id, user_id, platform_message_id, display_name, role, title, content, timestamp, created_at, updated_at)
        VALUES (:chat_id, :user_id, :platform_message_id, :display_name, :role, :title, :content, :timestamp, :created_at, :updated_at);
    `
	result, err := tx.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message", "chat_id", message.ChatID, "user_id", message.UserID, "error", err)
		return fmt.Errorf("failed to save message (chat %d, user %d): %w", message.ChatID, message.UserID, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // row ids are positive
		message.ID = uint(id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Message saved", "chat_id", message.ChatID, "user_id", message.UserID, "message_id", message.ID)
	return nil
}

// GetRecentMessagesInChat clamps limit to (0, maxHistoryLimit].
func (s *sqlxStore) GetRecentMessagesInChat(ctx context.Context, chatID int64, limit int) ([]Message, error) {
	if chatID == 0 {
		return nil, errors.New("chat_id cannot be zero")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	} else if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var messages []Message
	query := `
        SELECT id, chat_id, user_id, platform_message_id, display_name, role, title, content, timestamp, created_at, updated_at
        FROM messages
        WHERE chat_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &messages, query, chatID, limit); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get recent messages for chat %d: %w", chatID, err)
	}
	return messages, nil
}

func (s *sqlxStore) ChatMembers(ctx context.Context, chatID int64) (map[string]int64, error) {
	var rows []struct {
		DisplayName string `db:"display_name"`
		UserID      int64  `db:"user_id"`
	}
	query := `
        SELECT display_name, user_id
        FROM messages
        WHERE chat_id = ? AND display_name != ''
        ORDER BY timestamp ASC, id ASC;
    `
	if err := s.db.SelectContext(ctx, &rows, query, chatID); err != nil {
		return nil, fmt.Errorf("failed to list members for chat %d: %w", chatID, err)
	}
	members := make(map[string]int64, len(rows))
	for _, r := range rows {
		members[r.DisplayName] = r.UserID
	}
	return members, nil
}

func (s *sqlxStore) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE timestamp < ?;`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deleted row count: %w", err)
	}
	return n, nil
}

// RunSQLMaintenance executes VACUUM, which SQLite requires outside a transaction.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)")
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		s.logger.WarnContext(ctx, "Failed to set busy timeout", "error", err)
	}

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}
	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed")
	return nil
}

func (s *sqlxStore) SaveSticker(ctx context.Context, sticker *Sticker) error {
	if sticker == nil {
		return errors.New("cannot save nil sticker")
	}
	if sticker.Name == "" || (sticker.ImageURL == "" && len(sticker.ImageData) == 0) {
		return errors.New("sticker must have a name and an image")
	}

	now := time.Now().UTC()
	sticker.CreatedAt = now
	sticker.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	query := `
        INSERT INTO stickers (name, image_url, image_data, mime_type, chat_id, user_id, created_at, updated_at)
        VALUES (:name, :image_url, :image_data, :mime_type, :chat_id, :user_id, :created_at, :updated_at)
        ON CONFLICT(name) DO UPDATE SET
            image_url = excluded.image_url,
            image_data = excluded.image_data,
            mime_type = excluded.mime_type,
            chat_id = excluded.chat_id,
            user_id = excluded.user_id,
            updated_at = excluded.updated_at;
    `
	if _, err := tx.NamedExecContext(ctx, query, sticker); err != nil {
		return fmt.Errorf("failed to save sticker %q: %w", sticker.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Sticker saved", "name", sticker.Name, "chat_id", sticker.ChatID)
	return nil
}

func (s *sqlxStore) GetStickerByName(ctx context.Context, name string) (*Sticker, error) {
	var sticker Sticker
	query := `SELECT id, name, image_url, image_data, mime_type, chat_id, user_id, created_at, updated_at FROM stickers WHERE name = ?;`
	err := s.db.GetContext(ctx, &sticker, query, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get sticker %q: %w", name, err)
	}
	return &sticker, nil
}

func (s *sqlxStore) ListStickerNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, `SELECT name FROM stickers ORDER BY name ASC;`); err != nil {
		return nil, fmt.Errorf("failed to list sticker names: %w", err)
	}
	return names, nil
}

// rollback undoes tx unless it was already committed.
func (s *sqlxStore) rollback(ctx context.Context, tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logger.WarnContext(ctx, "Error rolling back transaction", "error", err)
	}
}
