package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/set-night/chatgate/internal/domain"
)

const listAccessTokens = `
SELECT token, name, valid_from, valid_to, comments
FROM access_tokens
ORDER BY created_at, token`

// TokenRepository reads the credential table.
type TokenRepository struct {
	db DBTX
}

func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Name() string { return "postgres:access_tokens" }

func (r *TokenRepository) ListTokens(ctx context.Context) ([]domain.AccessToken, error) {
	rows, err := r.db.Query(ctx, listAccessTokens)
	if err != nil {
		return nil, fmt.Errorf("query access tokens: %w", err)
	}
	tokens, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AccessToken, error) {
		var t domain.AccessToken
		err := row.Scan(&t.Token, &t.OwnerName, &t.ValidFrom, &t.ValidTo, &t.Comment)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan access tokens: %w", err)
	}

	out := tokens[:0]
	for _, t := range tokens {
		t.Token = strings.TrimSpace(t.Token)
		if t.Token == "" {
			continue
		}
		t.ValidFrom = nonBlank(t.ValidFrom)
		t.ValidTo = nonBlank(t.ValidTo)
		out = append(out, t)
	}
	return out, nil
}

// nonBlank maps an empty date cell to an absent date.
func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
