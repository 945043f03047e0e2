package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/r3labs/sse/v2"

	"github.com/citycast/server/internal/controller"
	"github.com/citycast/server/internal/history"
	"github.com/citycast/server/internal/jobs"
	catalogRedis "github.com/citycast/server/internal/repository/catalog/redis"
	"github.com/citycast/server/internal/service/channel"
	"github.com/citycast/server/pkg/ctxlogger"
	"github.com/citycast/server/pkg/redisclient"
)

type AppConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	LogLevel        string        `json:"log_level"`
	RedisHost       string        `json:"redis_host"`
	RedisPort       int           `json:"redis_port"`
	RedisPassword   string        `json:"-"`
	UpstreamURL     string        `json:"upstream_url"`
	RefreshInterval time.Duration `json:"refresh_interval"`
	HistoryDBPath   string        `json:"history_db_path"`
	CatalogTTL      time.Duration `json:"catalog_ttl"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if cfg.UpstreamURL == "" {
		return fmt.Errorf("upstream url is required")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	catalogTTL := cfg.CatalogTTL
	if catalogTTL <= 0 {
		catalogTTL = 24 * time.Hour
	}
	catalogRepo := catalogRedis.NewRepo(rc, catalogTTL)

	historyStore, err := history.NewStore(cfg.HistoryDBPath)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer historyStore.Close()

	events := sse.New()
	events.AutoReplay = false
	events.CreateStream("transitions")
	events.CreateStream("now-playing")
	defer events.Close()

	scheduler := jobs.SetupInBackground(&jobs.Config{
		UpstreamURL:     cfg.UpstreamURL,
		RefreshInterval: cfg.RefreshInterval,
	}, catalogRepo, logger)
	scheduler.StartAsync()
	defer scheduler.Stop()

	channelService := channel.New(catalogRepo, historyStore, events, logger)
	ctrl := controller.NewController(channelService, events, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: ctrl.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
