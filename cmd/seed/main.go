package main

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"

	"github.com/falconsupport/api/internal/blob"
	"github.com/falconsupport/api/internal/cache"
	"github.com/falconsupport/api/internal/config"
	"github.com/falconsupport/api/internal/database"
	"github.com/falconsupport/api/internal/guide"
	"github.com/falconsupport/api/internal/identity"
	"github.com/falconsupport/api/internal/mail"
	"github.com/falconsupport/api/internal/model"
	"github.com/falconsupport/api/internal/store"
	"github.com/falconsupport/api/internal/validator"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// SeedFile lists the bootstrap admins and starter guides.
type SeedFile struct {
	Admins []string    `yaml:"admins"`
	Guides []SeedGuide `yaml:"guides"`
}

type SeedGuide struct {
	Title  string   `yaml:"title"`
	Format string   `yaml:"format"`
	Tags   []string `yaml:"tags"`
	Body   string   `yaml:"body"`
}

func main() {
	filePath := pflag.StringP("file", "f", "data/seed.yaml", "Path to the seed file")
	skipGuides := pflag.Bool("skip-guides", false, "Only apply the admin list")
	dryRun := pflag.Bool("dry-run", false, "Show what would change without writing")
	pflag.Parse()

	seed, err := loadSeedFile(*filePath)
	if err != nil {
		log.Fatalf("Failed to load seed file: %v", err)
	}
	log.Printf("Loaded %d admins and %d guides from %s", len(seed.Admins), len(seed.Guides), *filePath)

	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	records := store.NewGormStore(db)

	ctx := context.Background()
	ids := identity.NewService(records, cache.NewMemoryStore(), &mail.LogMailer{}, identity.Options{
		AllowedDomain: cfg.AllowedEmailDomain,
		JWTSecret:     cfg.JWTSecret,
	})

	granted, missing := seedAdmins(ctx, ids, seed.Admins, *dryRun)
	log.Printf("Admins: granted=%d, missing=%d", granted, missing)

	if *skipGuides {
		return
	}

	blobs, err := blob.NewDiskStore(cfg.BlobDir)
	if err != nil {
		log.Fatalf("Failed to open blob store: %v", err)
	}
	guides := guide.NewService(records, blobs, validator.New(), cfg.PublicBaseURL)

	inserted, skipped := seedGuides(ctx, records, guides, seed.Guides, *dryRun)
	log.Printf("Seeding complete. Guides inserted: %d, skipped: %d", inserted, skipped)
}

func loadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, err
	}
	return &seed, nil
}

// seedAdmins grants the admin flag to accounts that already exist. Accounts
// that have not signed up yet are reported and picked up on a later run.
func seedAdmins(ctx context.Context, ids *identity.Service, admins []string, dryRun bool) (granted int, missing int) {
	for _, email := range admins {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		if err := ids.CheckDomain(email); err != nil {
			log.Printf("Skipping %s: outside @%s", email, ids.Domain())
			continue
		}
		if dryRun {
			log.Printf("[dry-run] would grant admin to %s", email)
			granted++
			continue
		}

		if _, err := ids.SetAdmin(ctx, email, true); err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				log.Printf("No account for %s yet; rerun after they sign up", email)
				missing++
				continue
			}
			log.Printf("Error granting admin to %s: %v", email, err)
			continue
		}
		granted++
	}
	return granted, missing
}

func seedGuides(ctx context.Context, records store.GuideStore, guides *guide.Service, seeds []SeedGuide, dryRun bool) (inserted int, skipped int) {
	// The service caps listings; dedupe against every stored title.
	existing, err := records.ListGuides(ctx, model.GuideQuery{})
	if err != nil {
		log.Printf("Failed to list guides: %v", err)
		return 0, len(seeds)
	}
	titles := make(map[string]bool, len(existing))
	for _, g := range existing {
		titles[strings.ToLower(g.Title)] = true
	}

	for _, sg := range seeds {
		if titles[strings.ToLower(sg.Title)] {
			skipped++
			continue
		}
		if dryRun {
			log.Printf("[dry-run] would create guide %q", sg.Title)
			inserted++
			continue
		}

		_, err := guides.Create(ctx, guide.Input{
			Title:  sg.Title,
			Format: sg.Format,
			Body:   sg.Body,
			Tags:   sg.Tags,
		}, "seed")
		if err != nil {
			log.Printf("Error creating guide %q: %v", sg.Title, err)
			skipped++
			continue
		}
		titles[strings.ToLower(sg.Title)] = true
		inserted++
	}
	return inserted, skipped
}
