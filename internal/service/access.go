package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/domain"
)

// IsDateValid checks one bound of a token's validity window against the
// calendar date of now. A nil date carries no constraint. With checkUpperBound
// the date is the last valid day, otherwise it is the first.
func IsDateValid(date *string, checkUpperBound bool, now time.Time) (bool, error) {
	if date == nil {
		return true, nil
	}
	parsed, err := time.Parse(config.TokenDateLayout, strings.TrimSpace(*date))
	if err != nil {
		return false, fmt.Errorf("%w: %q is not MM/DD/YYYY: %v", domain.ErrInvalidDate, *date, err)
	}
	today := calendarDate(now)
	if checkUpperBound {
		return !today.After(parsed), nil
	}
	return !today.Before(parsed), nil
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TokenSource yields credential rows from one tabular store.
type TokenSource interface {
	Name() string
	ListTokens(ctx context.Context) ([]domain.AccessToken, error)
}

// LoadTokens reads every source in order. A failing source is logged and
// skipped so that an unreachable store degrades to fewer (or no) tokens.
func LoadTokens(ctx context.Context, logger *slog.Logger, sources ...TokenSource) []domain.AccessToken {
	var tokens []domain.AccessToken
	for _, src := range sources {
		rows, err := src.ListTokens(ctx)
		if err != nil {
			logger.Warn("load access tokens", "source", src.Name(), "error", err)
			continue
		}
		logger.Info("access tokens loaded", "source", src.Name(), "count", len(rows))
		tokens = append(tokens, rows...)
	}
	return tokens
}

// AccessService holds the process-wide token mapping. It is built once and
// never mutated, so it is safe for concurrent readers.
type AccessService struct {
	tokens map[string]domain.AccessToken
	now    func() time.Time
}

func NewAccessService(tokens []domain.AccessToken) *AccessService {
	m := make(map[string]domain.AccessToken, len(tokens))
	for _, t := range tokens {
		m[t.Token] = t
	}
	return &AccessService{tokens: m, now: time.Now}
}

// Len returns the number of distinct tokens.
func (s *AccessService) Len() int {
	return len(s.tokens)
}

// Authorize returns the token record when token is known and inside its
// validity window.
func (s *AccessService) Authorize(token string) (*domain.AccessToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrTokenMissing
	}
	rec, ok := s.tokens[token]
	if !ok {
		return nil, domain.ErrTokenUnknown
	}
	now := s.now()

	active, err := IsDateValid(rec.ValidFrom, false, now)
	if err != nil {
		return nil, fmt.Errorf("check valid_from of %s: %w", rec.OwnerName, err)
	}
	if !active {
		return nil, domain.ErrTokenNotYetValid
	}

	current, err := IsDateValid(rec.ValidTo, true, now)
	if err != nil {
		return nil, fmt.Errorf("check valid_to of %s: %w", rec.OwnerName, err)
	}
	if !current {
		return nil, domain.ErrTokenExpired
	}
	return &rec, nil
}
