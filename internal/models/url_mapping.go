package models

import (
	"time"
)

// URLMapping - короткий код вместе с исходным URL и историей кликов
type URLMapping struct {
	Code        string     `json:"code"`
	OriginalURL string     `json:"original_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	TotalClicks int64      `json:"total_clicks"`
	Clicks      []Click    `json:"clicks"`
}

// IsExpiredAt сообщает, что в момент t ссылка уже не открывается
func (m *URLMapping) IsExpiredAt(t time.Time) bool {
	return m.ExpiresAt != nil && t.After(*m.ExpiresAt)
}

type CreateLinkInput struct {
	OriginalURL string
	// Expiry nil - применяется срок по умолчанию из конфига
	Expiry     *time.Time
	CustomCode string
}
