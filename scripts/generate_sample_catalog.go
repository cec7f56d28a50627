//go:build ignore

// Writes data/catalog/menu.jsonl.gz, a small catalog for local testing:
//
//	go run scripts/generate_sample_catalog.go
//	go run ./cmd/catalog-import data/catalog/menu.jsonl.gz
package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"tg-storefront/internal/catalog"

	"github.com/shopspring/decimal"
)

func main() {
	dataDir := "data/catalog"

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	entries := []catalog.Entry{
		{
			Title:       "Капучино",
			Description: "Эспрессо с молочной пенкой, 300 мл",
			Price:       decimal.RequireFromString("190.00"),
			Meta:        map[string]any{"category": "coffee"},
			Options: []catalog.OptionEntry{
				{Name: "milk", Values: []string{"whole", "oat", "almond"}},
				{Name: "size", Values: []string{"S", "M", "L"}},
			},
		},
		{
			Title:       "Латте",
			Description: "Эспрессо с молоком, 400 мл",
			Price:       decimal.RequireFromString("220.00"),
			Meta:        map[string]any{"category": "coffee"},
			Options: []catalog.OptionEntry{
				{Name: "milk", Values: []string{"whole", "oat", "almond"}},
				{Name: "syrup", Values: []string{"none", "vanilla", "caramel"}},
			},
		},
		{
			Title:       "Круассан",
			Description: "Сливочный круассан",
			Price:       decimal.RequireFromString("150.00"),
			Meta:        map[string]any{"category": "bakery"},
		},
		{
			Title:       "Сырники",
			Description: "Со сметаной и ягодным соусом",
			Price:       decimal.RequireFromString("320.50"),
			Meta:        map[string]any{"category": "breakfast"},
			Options: []catalog.OptionEntry{
				{Name: "sauce", Values: []string{"berry", "condensed milk"}},
			},
		},
	}

	filePath := filepath.Join(dataDir, "menu.jsonl.gz")
	if err := writeCatalogFile(filePath, entries); err != nil {
		log.Fatalf("Failed to create %s: %v", filePath, err)
	}

	fmt.Printf("Created %s with %d products\n", filePath, len(entries))
}

func writeCatalogFile(filePath string, entries []catalog.Entry) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	enc := json.NewEncoder(gzWriter)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
	}

	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return nil
}
