// Package catalog imports products from gzipped JSON-lines files kept on
// disk or in S3.
package catalog

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"tg-storefront/internal/model"

	"github.com/shopspring/decimal"
)

// ErrInvalidEntry is returned for a catalog line that cannot become a product.
var ErrInvalidEntry = errors.New("invalid catalog entry")

// Entry is one product line of a catalog file.
type Entry struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       *string         `json:"image,omitempty"`
	Meta        map[string]any  `json:"meta,omitempty"`
	Options     []OptionEntry   `json:"options,omitempty"`
}

// OptionEntry is a choice axis of an Entry.
type OptionEntry struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Product converts the entry into a product ready to be stored.
func (e Entry) Product() *model.Product {
	meta := e.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	options := make([]model.ProductOption, len(e.Options))
	for i, o := range e.Options {
		values := o.Values
		if values == nil {
			values = []string{}
		}
		options[i] = model.ProductOption{Name: o.Name, Values: values}
	}
	return &model.Product{
		Title:       e.Title,
		Description: e.Description,
		Price:       e.Price,
		Image:       e.Image,
		Meta:        meta,
		Options:     options,
	}
}

func (e Entry) validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEntry)
	}
	if !model.ValidAmount(e.Price) {
		return fmt.Errorf("%w: invalid price %s for %q", ErrInvalidEntry, e.Price, e.Title)
	}
	for _, o := range e.Options {
		if strings.TrimSpace(o.Name) == "" {
			return fmt.Errorf("%w: unnamed option on %q", ErrInvalidEntry, e.Title)
		}
	}
	return nil
}

// Loader reads the entries of one catalog file.
type Loader interface {
	// Load reads a gzipped JSON-lines catalog file.
	Load(ctx context.Context, path string) ([]Entry, error)
}

// decodeEntries reads gzipped JSON lines from r. Blank lines are skipped.
func decodeEntries(ctx context.Context, r io.Reader, source string) ([]Entry, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", source, err)
	}
	defer gzipReader.Close()

	scanner := bufio.NewScanner(gzipReader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var entries []Entry
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrInvalidEntry, source, lineNo, err)
		}
		if err := entry.validate(); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", source, lineNo, err)
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading catalog file %s: %w", source, err)
	}

	return entries, nil
}
