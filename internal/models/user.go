package models

// User is one row of the users table: a first-seen record written when
// a Telegram user sends /start for the first time. Rows are never
// updated or deleted.
type User struct {
	ID         int64   `json:"id"`
	TelegramID int64   `json:"telegram_id"`
	Login      *string `json:"login"`
	StartDate  string  `json:"start_date"`
}
