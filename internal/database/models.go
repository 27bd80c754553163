package database

import "time"

// Message is one stored group message, including the bot's own replies.
type Message struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	ChatID            int64     `db:"chat_id"`
	UserID            int64     `db:"user_id"`
	PlatformMessageID string    `db:"platform_message_id"`
	DisplayName       string    `db:"display_name"`
	Role              string    `db:"role"`
	Title             string    `db:"title"`
	Content           string    `db:"content"`
	Timestamp         time.Time `db:"timestamp"`
}

// Sticker is an image the bot learned a name for.
type Sticker struct {
	ID        uint      `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Name string `db:"name"`
	// ImageURL is where the image was first seen. QQ image links expire, so
	// ImageData holds the bytes that are actually re-sent.
	ImageURL  string `db:"image_url"`
	ImageData []byte `db:"image_data"`
	MIMEType  string `db:"mime_type"`
	ChatID    int64  `db:"chat_id"`
	UserID    int64  `db:"user_id"`
}
