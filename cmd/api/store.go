package main

import (
	"context"
	"fmt"
	"log"

	"github.com/shipway/server/internal/config"
	"github.com/shipway/server/internal/db"
	"github.com/shipway/server/internal/repo"
	"github.com/shipway/server/internal/repo/memrepo"
	"github.com/shipway/server/internal/repo/mongorepo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// stores bundles the repositories of the selected backend with its health check and shutdown hook.
type stores struct {
	users repo.UserRepo
	otps  repo.OtpRepo
	ping  func(ctx context.Context) error
	close func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return &stores{
			users: repo.NewUserRepo(database),
			otps:  repo.NewOtpRepo(database),
			ping:  database.PingContext,
			close: func() { _ = database.Close() },
		}, nil

	case config.StoreMongo:
		client, err := db.OpenMongo(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		database := client.Database(cfg.MongoDatabase)
		if err := mongorepo.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &stores{
			users: mongorepo.NewUserRepo(database),
			otps:  mongorepo.NewOtpRepo(database),
			ping: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Printf("MongoDB disconnect: %v", err)
				}
			},
		}, nil

	case config.StoreMemory:
		log.Println("Using in-memory store; data is lost on restart")
		return &stores{
			users: memrepo.NewUserStore(),
			otps:  memrepo.NewOtpStore(),
			close: func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}
