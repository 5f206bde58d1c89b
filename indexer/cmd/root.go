// Package cmd wires the indexer process together: config, migrations,
// storage, chain client, the background Indexer task, and the read API.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mikeydub/indexing-serv/api"
	"github.com/mikeydub/indexing-serv/config"
	migrate "github.com/mikeydub/indexing-serv/db"
	"github.com/mikeydub/indexing-serv/indexer"
	"github.com/mikeydub/indexing-serv/service/logger"
	"github.com/mikeydub/indexing-serv/service/persist/postgres"
	"github.com/mikeydub/indexing-serv/service/rpc"
)

var rootCmd = &cobra.Command{
	Use:   "indexer",
	Short: "Index ERC-20 Transfer events into Postgres and serve them over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		defer recoverAndRaise()
		run()
	},
}

// Execute is the cmd/indexer entrypoint's single call into this package.
func Execute() {
	rootCmd.Execute()
}

func initSentry() {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              viper.GetString("SENTRY_DSN"),
		Environment:      viper.GetString("ENV"),
		TracesSampleRate: viper.GetFloat64("SENTRY_TRACES_SAMPLE_RATE"),
		AttachStacktrace: true,
	})
	if err != nil {
		logger.For(nil).WithError(err).Error("indexer: failed to start sentry, continuing without it")
	}
}

func run() {
	ctx := context.Background()

	initSentry()

	cfg, err := config.Load()
	if err != nil {
		logger.For(ctx).WithError(err).Fatal("indexer: invalid configuration")
	}

	sqlDB, err := postgres.NewClient(cfg.DatabaseURL)
	if err != nil {
		logger.For(ctx).WithError(err).Fatal("indexer: could not open database connection")
	}

	if err := migrate.RunMigrations(sqlDB, "db/migrations"); err != nil {
		logger.For(ctx).WithError(err).Fatal("indexer: migrations failed")
	}
	sqlDB.Close()

	pool, err := postgres.NewPgxClient(cfg.DatabaseURL)
	if err != nil {
		logger.For(ctx).WithError(err).Fatal("indexer: could not create pgx pool")
	}
	defer pool.Close()

	repo := postgres.NewTransferRepository(pool)

	client, err := rpc.NewEthClient(ctx, cfg.RPCURL)
	if err != nil {
		logger.For(ctx).WithError(err).Fatal("indexer: could not dial chain rpc")
	}

	idx := indexer.New(client, repo, common.HexToAddress(cfg.ContractAddress), cfg.StartBlock)
	go idx.Run(ctx)

	logger.For(ctx).WithFields(logrus.Fields{"addr": api.ListenAddr}).Info("indexer: starting api server")
	router := api.NewRouter(repo)
	if err := router.Run(api.ListenAddr); err != nil {
		logger.For(ctx).WithError(err).Fatal("indexer: api server exited")
	}
}

func recoverAndRaise() {
	if err := recover(); err != nil {
		sentry.CurrentHub().Recover(err)
		sentry.Flush(2 * time.Second)
		panic(fmt.Sprintf("indexer: %v", err))
	}
}
