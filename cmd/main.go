package main

import (
	"context"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/aleksfrolov/hackteams/internal/api"
	"github.com/aleksfrolov/hackteams/internal/config"
	"github.com/aleksfrolov/hackteams/internal/db"
	"github.com/aleksfrolov/hackteams/internal/repository"
	"github.com/aleksfrolov/hackteams/internal/service"
	"github.com/aleksfrolov/hackteams/pkg/logger"
)

func main() {
	logger, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting application")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err = pool.Ping(context.Background()); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}

	logger.Info("database connection established")

	if err = db.Migrate(context.Background(), pool); err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}

	transactor := db.NewPgxTransactor(pool)

	teamRepo := repository.NewPgxTeamRepository(pool)
	statementRepo := repository.NewPgxStatementRepository(pool)
	voteRepo := repository.NewPgxVoteRepository(pool)

	team := service.NewTeamService(transactor, cfg.MaxTeamSize, cfg.SelectionCap).
		WithTeamRepo(teamRepo).
		WithStatementRepo(statementRepo).
		WithVoteRepo(voteRepo)
	statements := service.NewStatementService(transactor, cfg.SelectionCap).
		WithStatementRepo(statementRepo)
	votes := service.NewVoteService(transactor).
		WithVoteRepo(voteRepo).
		WithTeamRepo(teamRepo)

	healthChecker := api.MustNewHealthChecker(health.Config{
		Name:    "postgres",
		Timeout: 5 * time.Second,
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	})

	e := echo.New()

	handler := api.NewHandler(logger).
		WithHealthChecker(healthChecker).
		WithTeamService(team).
		WithStatementService(statements).
		WithVoteService(votes)

	handler.RegisterRoutes(e)

	logger.Info("server starting", zap.String("addr", cfg.HTTPAddr))
	if err = e.Start(cfg.HTTPAddr); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
