package main

import (
	"os"

	"github.com/linkloop/linkloop-backend/internal/config"
	"github.com/linkloop/linkloop-backend/internal/model"
	"github.com/linkloop/linkloop-backend/internal/repository"
	"github.com/linkloop/linkloop-backend/internal/server"
	"github.com/linkloop/linkloop-backend/pkg/cache"
	"github.com/linkloop/linkloop-backend/pkg/database"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const referralBloomKey = "referral_codes"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	db, err := database.Connect(database.Options{
		Host:     cfg.DBHost,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
		Port:     cfg.DBPort,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		logger.Fatal().Err(err).Msg("migrate schema")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	rdb := redis.NewClient(redisOpts)

	repos := repository.NewRepositories(
		db,
		cache.NewRedis(rdb),
		cache.NewRedisBloom(rdb, referralBloomKey),
		rdb,
		logger,
		repository.Options{
			ConnCountTTL: cfg.ConnCountTTL,
			InterestTTL:  cfg.InterestTTL,
			InviteSalt:   cfg.InviteSalt,
		},
	)

	srv := server.New(repos, logger, cfg.CORSOrigins)
	logger.Info().Str("port", cfg.Port).Msg("starting server")
	if err := srv.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
