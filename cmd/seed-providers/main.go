package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"smartai_gateway/internal/config"
	"smartai_gateway/internal/seed"
	"smartai_gateway/internal/storage"
)

func main() {
	file := flag.String("file", os.Getenv("SEED_PROVIDERS_FILE"), "YAML file with provider overrides (optional)")
	update := flag.Bool("update", false, "rewrite providers that already exist")
	flag.Parse()

	fmt.Println("SmartAI Gateway - Provider Seeding")
	fmt.Println(strings.Repeat("=", 40))

	cfg, err := config.Load()
	if err != nil {
		fail("Failed to load configuration: %v", err)
	}

	var doc *seed.File
	if *file != "" {
		fmt.Printf("Reading overrides from %s\n", *file)
		doc, err = seed.LoadFile(*file)
		if err != nil {
			fail("%v", err)
		}
	}
	if *update {
		if doc == nil {
			doc = &seed.File{}
		}
		doc.UpdateExisting = true
	}

	fmt.Println("Connecting to database...")
	db, err := storage.NewDB(storage.DBConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		fail("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			fail("%v", err)
		}
	}

	encryption, err := storage.NewEncryption(cfg.EncryptionKey)
	if err != nil {
		fail("Failed to initialize encryption: %v", err)
	}

	seeder := seed.New(
		storage.NewProviderConfigRepository(db),
		storage.NewAdminUserRepository(db),
		encryption,
	)
	report, err := seeder.Run(ctx, doc)
	if err != nil {
		fail("%v", err)
	}

	fmt.Println()
	printList("Created", report.Created)
	printList("Updated", report.Updated)
	printList("Unchanged", report.Skipped)

	if report.AdminCreated {
		fmt.Printf("\nBootstrap admin %s created.\n", report.AdminEmail)
		fmt.Println("Remove ADMIN_BOOTSTRAP_PASSWORD from the environment once you have logged in.")
	} else if report.AdminEmail != "" {
		fmt.Printf("\nAdmin %s already exists, no action taken.\n", report.AdminEmail)
	}

	fmt.Println("\nSeeded providers start Inactive unless the file says otherwise.")
	fmt.Println("Activate them through PUT /admin/providers/{id} once an API key is set.")
}

func printList(label string, names []string) {
	if len(names) == 0 {
		return
	}
	fmt.Printf("%-10s %s\n", label+":", strings.Join(names, ", "))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
	os.Exit(1)
}
