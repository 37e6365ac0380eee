package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sheet = "\ufefftoken,name,valid_from,valid_to,comments\n" +
	"test-token,Tester,01/01/2024,12/31/2099,internal\n" +
	"open-ended,Open,,,\n" +
	",Nobody,,,skipped\n" +
	"short,Short\n"

func TestParseTokenCSV(t *testing.T) {
	tokens, err := ParseTokenCSV(strings.NewReader(sheet))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d: %+v", len(tokens), tokens)
	}
	first := tokens[0]
	if first.Token != "test-token" || first.OwnerName != "Tester" || first.Comment != "internal" {
		t.Fatalf("unexpected first row %+v", first)
	}
	if first.ValidFrom == nil || *first.ValidFrom != "01/01/2024" || first.ValidTo == nil || *first.ValidTo != "12/31/2099" {
		t.Fatalf("unexpected dates %v %v", first.ValidFrom, first.ValidTo)
	}
	if tokens[1].ValidFrom != nil || tokens[1].ValidTo != nil {
		t.Fatalf("expected blank dates to be absent, got %+v", tokens[1])
	}
	if tokens[2].Token != "short" || tokens[2].ValidTo != nil {
		t.Fatalf("expected short row to parse, got %+v", tokens[2])
	}
}

func TestParseTokenCSVColumnOrder(t *testing.T) {
	tokens, err := ParseTokenCSV(strings.NewReader("Name, Valid_To ,Token\nAda,1/5/2030,abc\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Token != "abc" || tokens[0].OwnerName != "Ada" || *tokens[0].ValidTo != "1/5/2030" {
		t.Fatalf("unexpected tokens %+v", tokens)
	}
}

func TestParseTokenCSVRequiresTokenColumn(t *testing.T) {
	for _, in := range []string{"", "name,valid_to\nAda,1/1/2030\n"} {
		if _, err := ParseTokenCSV(strings.NewReader(in)); !errors.Is(err, errNoTokenColumn) {
			t.Fatalf("expected errNoTokenColumn for %q, got %v", in, err)
		}
	}
}

func TestCSVTokenSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.csv")
	if err := os.WriteFile(path, []byte(sheet), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	tokens, err := NewCSVTokenSource(path).ListTokens(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}

	if _, err := NewCSVTokenSource(filepath.Join(t.TempDir(), "missing.csv")).ListTokens(context.Background()); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}

func TestCSVTokenSourceURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/export" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, sheet)
	}))
	defer srv.Close()

	src := NewCSVTokenSource(srv.URL + "/export?format=csv")
	if !strings.HasPrefix(src.Name(), "csv:127.0.0.1") || strings.Contains(src.Name(), "format") {
		t.Fatalf("unexpected source name %q", src.Name())
	}
	tokens, err := src.ListTokens(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}

	if _, err := NewCSVTokenSource(srv.URL + "/gone").ListTokens(context.Background()); err == nil {
		t.Fatalf("expected error for a 404 sheet")
	}
}
