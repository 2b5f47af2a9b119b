// Package leads parses plain-text lead files: one job posting URL per
// line, blank lines and #-comments ignored.
package leads

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"jobpilot/internal/domain"
)

// Parse reads a leads file and returns one item per non-blank,
// non-comment line. Invalid URLs are kept in the result with their
// error set, so callers can report them with line numbers.
func Parse(path string) ([]domain.LeadItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open leads file: %w", err)
	}
	defer f.Close()

	var items []domain.LeadItem
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		item, err := domain.NewLeadItem(text, line, validate(text))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read leads file: %w", err)
	}
	return items, nil
}

// Valid returns only the parseable leads.
func Valid(items []domain.LeadItem) []domain.LeadItem {
	var out []domain.LeadItem
	for _, item := range items {
		if item.Valid {
			out = append(out, item)
		}
	}
	return out
}

// validate returns an empty string for a usable lead URL, otherwise a
// human-readable reason.
func validate(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("unparseable URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "missing host"
	}
	return ""
}
