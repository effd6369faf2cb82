package domain

import "time"

// Recipient is one notification target, identified by its Telegram chat ID.
// The set only grows; recipients are never removed automatically.
type Recipient struct {
	ChatID  int64
	AddedAt time.Time
}
