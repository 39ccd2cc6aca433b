package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgBlacklist struct {
	pool *pgxpool.Pool
}

// NewPGBlacklist stores blacklisted JTIs in the token_blacklist table so
// logouts survive restarts and are shared by every server instance.
func NewPGBlacklist(pool *pgxpool.Pool) Blacklist {
	return &pgBlacklist{pool: pool}
}

func (b *pgBlacklist) Add(ctx context.Context, jti string, userID int64, expiresAt time.Time) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO token_blacklist (jti, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING`,
		jti, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func (b *pgBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := b.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM token_blacklist WHERE jti = $1)`, jti,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check token blacklist: %w", err)
	}
	return exists, nil
}
