package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	cron_config "github.com/cadrius/mailpipe/internal/cron/config"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/tracing"
)

type Config struct {
	AppConfig            *AppConfig
	Logger               *logger.Config
	Tracing              *tracing.JaegerConfig
	DatabaseConfig       *DatabaseConfig
	AIConfig             *AIConfig
	IMAPOverrideConfig   *IMAPOverrideConfig
	OperatorConfig       *OperatorConfig
	IntegrationEndpoints *IntegrationEndpoints
	CronConfig           *cron_config.Config
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:            &AppConfig{},
		Logger:               &logger.Config{},
		Tracing:              &tracing.JaegerConfig{},
		DatabaseConfig:       &DatabaseConfig{},
		AIConfig:             &AIConfig{},
		IMAPOverrideConfig:   &IMAPOverrideConfig{},
		OperatorConfig:       &OperatorConfig{},
		IntegrationEndpoints: &IntegrationEndpoints{},
		CronConfig:           &cron_config.Config{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading mailpipe config: %v", err)
	}

	return config, nil
}
