//go:build ignore

// Connects with the DB_* settings, reports the server and checks that the
// storefront tables exist:
//
//	go run scripts/check_db.go
package main

import (
	"context"
	"fmt"
	"os"

	"tg-storefront/internal/config"
	"tg-storefront/internal/database"

	"github.com/rs/zerolog"
)

var tables = []string{"products", "product_options", "orders", "order_items"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.Database, zerolog.Nop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	var dbName, version string
	err = pool.QueryRow(ctx, "SELECT current_database(), version()").Scan(&dbName, &version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "QueryRow failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Connected to %s\n%s\n\n", dbName, version)

	missing := 0
	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", "public."+table).Scan(&exists)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Lookup of %s failed: %v\n", table, err)
			os.Exit(1)
		}
		if !exists {
			missing++
			fmt.Printf("  - %s: missing\n", table)
			continue
		}

		var rows int64
		if err := pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&rows); err != nil {
			fmt.Fprintf(os.Stderr, "Count of %s failed: %v\n", table, err)
			os.Exit(1)
		}
		fmt.Printf("  - %s: %d rows\n", table, rows)
	}

	if missing > 0 {
		fmt.Println("\nSchema incomplete; start the API with DB_AUTO_SCHEMA=true to create it.")
		os.Exit(1)
	}
}
