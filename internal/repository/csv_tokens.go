package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/set-night/chatgate/internal/config"
	"github.com/set-night/chatgate/internal/domain"
)

// CSVTokenSource reads credential rows from a CSV file or from a URL serving
// CSV, such as a published spreadsheet export. The first row is the header;
// columns are matched by name.
type CSVTokenSource struct {
	location string
	client   *http.Client
}

func NewCSVTokenSource(location string) *CSVTokenSource {
	return &CSVTokenSource{
		location: location,
		client:   &http.Client{Timeout: config.RequestTimeout},
	}
}

func (s *CSVTokenSource) Name() string {
	if u, err := url.Parse(s.location); err == nil && u.Host != "" {
		return "csv:" + u.Host + u.Path
	}
	return "csv:" + s.location
}

func (s *CSVTokenSource) ListTokens(ctx context.Context) ([]domain.AccessToken, error) {
	r, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ParseTokenCSV(r)
}

func (s *CSVTokenSource) open(ctx context.Context) (io.ReadCloser, error) {
	if !strings.HasPrefix(s.location, "http://") && !strings.HasPrefix(s.location, "https://") {
		f, err := os.Open(s.location)
		if err != nil {
			return nil, fmt.Errorf("open token file: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch token sheet: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch token sheet: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

var errNoTokenColumn = errors.New("token column missing")

// ParseTokenCSV decodes rows with the columns token, name, valid_from,
// valid_to and comments. Only token is required; blank date cells are absent
// dates and rows without a token are skipped.
func ParseTokenCSV(r io.Reader) ([]domain.AccessToken, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: %w", errNoTokenColumn)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[name] = i
	}
	if _, ok := cols["token"]; !ok {
		return nil, errNoTokenColumn
	}

	cell := func(rec []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	date := func(rec []string, col string) *string {
		v := cell(rec, col)
		return nonBlank(&v)
	}

	var tokens []domain.AccessToken
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		token := cell(rec, "token")
		if token == "" {
			continue
		}
		tokens = append(tokens, domain.AccessToken{
			Token:     token,
			OwnerName: cell(rec, "name"),
			ValidFrom: date(rec, "valid_from"),
			ValidTo:   date(rec, "valid_to"),
			Comment:   cell(rec, "comments"),
		})
	}
	return tokens, nil
}
