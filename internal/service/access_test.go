package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/set-night/chatgate/internal/domain"
)

func strPtr(s string) *string { return &s }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsDateValidBounds(t *testing.T) {
	now := time.Date(2026, time.March, 15, 18, 30, 0, 0, time.Local)
	today := now.Format("01/02/2006")
	tomorrow := now.AddDate(0, 0, 1).Format("01/02/2006")
	yesterday := now.AddDate(0, 0, -1).Format("01/02/2006")

	cases := []struct {
		date  string
		upper bool
		want  bool
	}{
		{today, true, true},
		{today, false, true},
		{tomorrow, true, true},
		{tomorrow, false, false},
		{yesterday, true, false},
		{yesterday, false, true},
		{"01/01/2000", true, false},
		{"12/31/2099", true, true},
		{"3/5/2026", false, true},
	}
	for _, tc := range cases {
		got, err := IsDateValid(strPtr(tc.date), tc.upper, now)
		if err != nil {
			t.Fatalf("%s upper=%v: unexpected err: %v", tc.date, tc.upper, err)
		}
		if got != tc.want {
			t.Fatalf("%s upper=%v: expected %v, got %v", tc.date, tc.upper, tc.want, got)
		}
	}
}

func TestIsDateValidWithoutDate(t *testing.T) {
	for _, upper := range []bool{true, false} {
		ok, err := IsDateValid(nil, upper, time.Now())
		if err != nil || !ok {
			t.Fatalf("expected nil date to pass (upper=%v), got %v %v", upper, ok, err)
		}
	}
}

func TestIsDateValidRejectsBadFormat(t *testing.T) {
	for _, bad := range []string{"2024-01-01", "31/12/2099x", "", "13/01/2024"} {
		_, err := IsDateValid(strPtr(bad), true, time.Now())
		if !errors.Is(err, domain.ErrInvalidDate) {
			t.Fatalf("%q: expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestAuthorize(t *testing.T) {
	svc := NewAccessService([]domain.AccessToken{
		{Token: "test-token", OwnerName: "Tester", ValidFrom: strPtr("01/01/2020"), ValidTo: strPtr("12/31/2099")},
		{Token: "old", OwnerName: "Old", ValidTo: strPtr("01/01/2000")},
		{Token: "future", OwnerName: "Future", ValidFrom: strPtr("01/01/2999")},
		{Token: "open", OwnerName: "Open"},
		{Token: "broken", OwnerName: "Broken", ValidTo: strPtr("2099-12-31")},
	})
	svc.now = func() time.Time { return time.Date(2026, time.October, 17, 9, 0, 0, 0, time.Local) }

	rec, err := svc.Authorize("test-token")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if rec.OwnerName != "Tester" {
		t.Fatalf("unexpected owner %q", rec.OwnerName)
	}
	if _, err := svc.Authorize("open"); err != nil {
		t.Fatalf("expected open-ended token to pass: %v", err)
	}

	checks := map[string]error{
		"":       domain.ErrTokenMissing,
		"   ":    domain.ErrTokenMissing,
		"nope":   domain.ErrTokenUnknown,
		"old":    domain.ErrTokenExpired,
		"future": domain.ErrTokenNotYetValid,
		"broken": domain.ErrInvalidDate,
	}
	for token, want := range checks {
		if _, err := svc.Authorize(token); !errors.Is(err, want) {
			t.Fatalf("token %q: expected %v, got %v", token, want, err)
		}
	}
}

func TestNewAccessServiceLastRowWins(t *testing.T) {
	svc := NewAccessService([]domain.AccessToken{
		{Token: "dup", OwnerName: "First", ValidTo: strPtr("01/01/2000")},
		{Token: "dup", OwnerName: "Second"},
	})
	if svc.Len() != 1 {
		t.Fatalf("expected 1 token, got %d", svc.Len())
	}
	rec, err := svc.Authorize("dup")
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if rec.OwnerName != "Second" {
		t.Fatalf("expected last row to win, got %q", rec.OwnerName)
	}
}

type stubTokenSource struct {
	name   string
	tokens []domain.AccessToken
	err    error
}

func (s stubTokenSource) Name() string { return s.name }

func (s stubTokenSource) ListTokens(context.Context) ([]domain.AccessToken, error) {
	return s.tokens, s.err
}

func TestLoadTokensSkipsFailingSources(t *testing.T) {
	tokens := LoadTokens(context.Background(), discardLogger(),
		stubTokenSource{name: "db", err: errors.New("connection refused")},
		stubTokenSource{name: "csv", tokens: []domain.AccessToken{{Token: "a"}, {Token: "b"}}},
	)
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}

	if got := LoadTokens(context.Background(), discardLogger()); len(got) != 0 {
		t.Fatalf("expected no tokens without sources, got %d", len(got))
	}
}
