package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kan140979/Proleum-Pro-Bot/internal/models"
)

// UserRepository persists first-seen user records. The table has no
// uniqueness constraint on telegram_id; callers are expected to check
// Exists before Register.
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	user := &models.User{}

	query := `SELECT id, telegram_id, login, start_date FROM users WHERE telegram_id = $1`

	err := r.db.QueryRow(ctx, query, telegramID).Scan(
		&user.ID,
		&user.TelegramID,
		&user.Login,
		&user.StartDate,
	)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Exists reports whether a record for telegramID is already present.
func (r *UserRepository) Exists(ctx context.Context, telegramID int64) (bool, error) {
	_, err := r.GetByTelegramID(ctx, telegramID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up user %d: %w", telegramID, err)
	}
	return true, nil
}

// Register inserts a first-seen record. login may be nil for users
// without a Telegram username.
func (r *UserRepository) Register(ctx context.Context, telegramID int64, login *string, startDate string) error {
	query := `INSERT INTO users (telegram_id, login, start_date) VALUES ($1, $2, $3)`

	_, err := r.db.Exec(ctx, query, telegramID, login, startDate)
	if err != nil {
		return fmt.Errorf("failed to insert user %d: %w", telegramID, err)
	}
	return nil
}
