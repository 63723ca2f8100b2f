// Command seed loads track module ordering into the modules table and can
// mint a bearer token for manual API testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"track-billing/internal/config"
	"track-billing/internal/domain"
	"track-billing/internal/infra/adapters/catalog"
	"track-billing/internal/infra/api/apiv1"
	pg "track-billing/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	catalogPath := flag.String("catalog", "", "catalog YAML; defaults to catalog.path, then the demo catalog")
	tokenFor := flag.String("token-for", "", "print a bearer token for this user id")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed token")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	path := *catalogPath
	if path == "" {
		path = cfg.Catalog.Path
	}
	src := catalog.Demo()
	if path != "" {
		if src, err = catalog.LoadStaticCatalog(path); err != nil {
			log.Fatalf("catalog: %v", err)
		}
	}

	repo := pg.NewCatalogRepo(pool)
	for _, track := range src.Tracks() {
		if existing, err := repo.ModuleIDs(ctx, track); err == nil {
			fmt.Printf("%s: %d modules already present, skipped\n", track, len(existing))
			continue
		}
		modules, _ := src.ModuleIDs(ctx, track)
		for i, id := range modules {
			err := repo.AddModule(ctx, track, id, i, id)
			if domain.IsConflict(err) {
				log.Fatalf("module %q of %s clashes with an existing row", id, track)
			}
			if err != nil {
				log.Fatalf("add module %q: %v", id, err)
			}
		}
		fmt.Printf("%s: seeded %d modules\n", track, len(modules))
	}

	if *tokenFor != "" {
		token, err := apiv1.NewAuthenticator(cfg.Auth.JWTSecret).Mint(*tokenFor, *tokenTTL)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Printf("token for %s: %s\n", *tokenFor, token)
	}
}
