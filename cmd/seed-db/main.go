package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/salesdesk/internal/storage/postgres"
)

func main() {
	var (
		databaseURL     string
		seedPath        string
		defaultPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to the seed file (.json or .json.gz)")
	flag.StringVar(&defaultPassword, "default-password", "", "password for seeded users without one (or SALESDESK_SEED_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if defaultPassword == "" {
		defaultPassword = os.Getenv("SALESDESK_SEED_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, defaultPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, defaultPassword string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	seed, err := readSeedFile(seedPath)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// The three tables are independent, so they are loaded concurrently.
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return errors.Wrap(seedProducts(ctx, postgres.NewProductRepository(pool), seed.Products), "seed products")
	})
	g.Go(func() error {
		return errors.Wrap(seedClients(ctx, postgres.NewClientRepository(pool), seed.Clients), "seed clients")
	})
	g.Go(func() error {
		return errors.Wrap(seedUsers(ctx, postgres.NewUserRepository(pool), seed.Users, defaultPassword), "seed users")
	})
	return g.Wait()
}

func logDropped(kind string, dropped []string) {
	for _, code := range dropped {
		slog.Warn("skipping duplicate", slog.String("kind", kind), slog.String("code", code))
	}
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, items []productJSON) error {
	items, dropped := dedupe(items, func(p productJSON) string { return p.Code })
	logDropped("product", dropped)
	slog.Info("upserting products", slog.Int("count", len(items)))

	for _, it := range items {
		p, err := it.domain()
		if err != nil {
			return err
		}
		if err := repo.Upsert(ctx, p); err != nil {
			return err
		}
		slog.Info("upserted product", slog.String("code", p.Code), slog.String("name", p.Name))
	}
	return nil
}

func seedClients(ctx context.Context, repo *postgres.ClientRepository, items []clientJSON) error {
	items, dropped := dedupe(items, func(c clientJSON) string { return c.Code })
	logDropped("client", dropped)
	slog.Info("upserting clients", slog.Int("count", len(items)))

	for _, it := range items {
		c, err := it.domain()
		if err != nil {
			return err
		}
		if err := repo.Upsert(ctx, c); err != nil {
			return err
		}
		slog.Info("upserted client", slog.String("code", c.Code), slog.String("name", c.BusinessName))
	}
	return nil
}

func seedUsers(ctx context.Context, repo *postgres.UserRepository, items []userJSON, defaultPassword string) error {
	items, dropped := dedupe(items, func(u userJSON) string { return u.Username })
	logDropped("user", dropped)
	slog.Info("upserting users", slog.Int("count", len(items)))

	for _, it := range items {
		u, err := it.domain(defaultPassword)
		if err != nil {
			return err
		}
		if err := repo.Upsert(ctx, u); err != nil {
			return err
		}
		slog.Info("upserted user", slog.String("username", u.Username), slog.String("role", string(u.Role)))
	}
	return nil
}
