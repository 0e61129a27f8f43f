package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/linktally/internal/cache"
	"github.com/roniherschmann/linktally/internal/config"
	"github.com/roniherschmann/linktally/internal/core"
	httpapi "github.com/roniherschmann/linktally/internal/http"
	"github.com/roniherschmann/linktally/internal/store"
)

func main() {
	// Fast JSON logs by default; pretty if running in a TTY/dev
	if isatty() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	cfg := config.Load()

	var dsnFlag string
	flag.StringVar(&dsnFlag, "dsn", "", "SQLite DSN (overrides env DB_DSN)")
	flag.Parse()
	if dsnFlag != "" {
		cfg.DBDSN = dsnFlag
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}
	defer st.Close()
	log.Info().Str("driver", cfg.StoreDriver).Msg("connected to store")

	var targets *cache.Targets
	if cfg.CacheEnabled {
		targets, err = cache.New(int64(cfg.CacheMaxItems), time.Duration(cfg.CacheTTLSecs)*time.Second)
		if err != nil {
			log.Fatal().Err(err).Msg("init cache")
		}
		defer targets.Close()
	}

	svc := core.NewService(st, targets, cfg.IDLength)

	// Prewarm cache
	if n := cfg.CachePrewarm; n > 0 {
		if err := svc.PrewarmCache(ctx, n); err != nil {
			log.Warn().Err(err).Msg("cache prewarm")
		}
	}

	// HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpapi.NewRouter(cfg, svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal")
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("bye")
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return store.OpenSQLite(cfg.DBDSN, cfg.DBMaxConns)
	case "redis":
		return store.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func isatty() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
