package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/citycast/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 8080,
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	redisHost = configVar[string]{
		envKey:       "REDIS_HOST",
		flagKey:      "redis-host",
		defaultValue: "localhost",
	}
	redisPort = configVar[int]{
		envKey:       "REDIS_PORT",
		flagKey:      "redis-port",
		defaultValue: 6379,
	}
	redisPassword = configVar[string]{
		envKey:       "REDIS_PASSWORD",
		flagKey:      "redis-password",
		defaultValue: "",
	}
	upstreamURL = configVar[string]{
		envKey:       "UPSTREAM_URL",
		flagKey:      "upstream-url",
		defaultValue: "",
	}
	refreshInterval = configVar[time.Duration]{
		envKey:       "REFRESH_INTERVAL",
		flagKey:      "refresh-interval",
		defaultValue: 5 * time.Minute,
	}
	historyDBPath = configVar[string]{
		envKey:       "HISTORY_DB_PATH",
		flagKey:      "history-db-path",
		defaultValue: "citycast.db",
	}
	catalogTTL = configVar[time.Duration]{
		envKey:       "CATALOG_TTL",
		flagKey:      "catalog-ttl",
		defaultValue: 24 * time.Hour,
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(redisHost.flagKey, redisHost.defaultValue, "Redis host")
	pflag.Int(redisPort.flagKey, redisPort.defaultValue, "Redis port")
	pflag.String(redisPassword.flagKey, redisPassword.defaultValue, "Redis password")
	pflag.String(upstreamURL.flagKey, upstreamURL.defaultValue, "Newsroom CMS feed url")
	pflag.Duration(refreshInterval.flagKey, refreshInterval.defaultValue, "Catalog refresh interval")
	pflag.String(historyDBPath.flagKey, historyDBPath.defaultValue, "As-played log sqlite path")
	pflag.Duration(catalogTTL.flagKey, catalogTTL.defaultValue, "Catalog key expiry")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(redisHost.flagKey, redisHost.envKey)
	viper.BindEnv(redisPort.flagKey, redisPort.envKey)
	viper.BindEnv(redisPassword.flagKey, redisPassword.envKey)
	viper.BindEnv(upstreamURL.flagKey, upstreamURL.envKey)
	viper.BindEnv(refreshInterval.flagKey, refreshInterval.envKey)
	viper.BindEnv(historyDBPath.flagKey, historyDBPath.envKey)
	viper.BindEnv(catalogTTL.flagKey, catalogTTL.envKey)

	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(redisHost.flagKey, redisHost.defaultValue)
	viper.SetDefault(redisPort.flagKey, redisPort.defaultValue)
	viper.SetDefault(redisPassword.flagKey, redisPassword.defaultValue)
	viper.SetDefault(upstreamURL.flagKey, upstreamURL.defaultValue)
	viper.SetDefault(refreshInterval.flagKey, refreshInterval.defaultValue)
	viper.SetDefault(historyDBPath.flagKey, historyDBPath.defaultValue)
	viper.SetDefault(catalogTTL.flagKey, catalogTTL.defaultValue)

	return &app.AppConfig{
		Host:            viper.GetString(host.flagKey),
		Port:            viper.GetInt(port.flagKey),
		LogLevel:        viper.GetString(logLevel.flagKey),
		RedisHost:       viper.GetString(redisHost.flagKey),
		RedisPort:       viper.GetInt(redisPort.flagKey),
		RedisPassword:   viper.GetString(redisPassword.flagKey),
		UpstreamURL:     viper.GetString(upstreamURL.flagKey),
		RefreshInterval: viper.GetDuration(refreshInterval.flagKey),
		HistoryDBPath:   viper.GetString(historyDBPath.flagKey),
		CatalogTTL:      viper.GetDuration(catalogTTL.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()
	if err := appConfig.Validate(); err != nil {
		log.Fatal(err)
	}

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
