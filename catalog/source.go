package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Static is an in-memory source, used for compiled-in brand lists and
// tests.
type Static []BrandRecord

// Brands returns the list as-is.
func (s Static) Brands(_ context.Context) ([]BrandRecord, error) {
	return []BrandRecord(s), nil
}

// File reads a CSV file from disk. Format: name,cashback_percent with an
// optional header row.
type File string

// Brands reads and parses the file.
func (f File) Brands(_ context.Context) ([]BrandRecord, error) {
	fh, err := os.Open(string(f))
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", string(f), err)
	}
	defer fh.Close()
	return parseCSV(fh)
}

// HTTP fetches a CSV resource over HTTP(S).
type HTTP struct {
	URL    string
	Client *http.Client
}

// Brands fetches and parses the resource.
func (h HTTP) Brands(ctx context.Context) ([]BrandRecord, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: new request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch %s: %w", h.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: fetch %s: status %d", h.URL, resp.StatusCode)
	}

	return parseCSV(resp.Body)
}

// parseCSV reads name,cashback_percent rows. Rows with a non-numeric
// second column are skipped (this also drops a header row), short rows
// are skipped, a malformed stream fails the whole parse.
func parseCSV(r io.Reader) ([]BrandRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var brands []BrandRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: parse csv: %w", err)
		}
		if len(row) < 2 {
			continue
		}

		pct, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			continue
		}

		brands = append(brands, BrandRecord{
			Name:            strings.TrimSpace(row[0]),
			CashbackPercent: pct,
		})
	}
	return brands, nil
}
