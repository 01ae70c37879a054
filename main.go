package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/cadrius/mailpipe/config"
	"github.com/cadrius/mailpipe/internal/database"
	"github.com/cadrius/mailpipe/internal/logger"
	"github.com/cadrius/mailpipe/internal/repository"
	"github.com/cadrius/mailpipe/internal/utils"
	"github.com/cadrius/mailpipe/server"
	"github.com/cadrius/mailpipe/services"
)

const appSourceCLI = "mailpipe-cli"

func main() {
	app := &cli.App{
		Name:  "mailpipe",
		Usage: "IMAP ingestion, rule matching and AI extraction pipeline",
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Run database migrations",
				Action: migrateCommand,
			},
			{
				Name:   "server",
				Usage:  "Start the application server",
				Action: serverCommand,
			},
			{
				Name:  "fetch",
				Usage: "Fetch new messages for one mailbox and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mailbox", Usage: "Mailbox ID", Required: true},
				},
				Action: fetchCommand,
			},
			{
				Name:  "process",
				Usage: "Run the extraction pipeline for one stored message",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message", Usage: "Email message ID", Required: true},
				},
				Action: processCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, *gorm.DB, *database.DatabaseConfig, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("config initialization failed: %w", err)
	}
	if cfg == nil {
		return nil, nil, nil, fmt.Errorf("config is empty")
	}

	dbConfig := &database.DatabaseConfig{
		DBName:          cfg.DatabaseConfig.DBName,
		Host:            cfg.DatabaseConfig.Host,
		Port:            cfg.DatabaseConfig.Port,
		User:            cfg.DatabaseConfig.User,
		Password:        cfg.DatabaseConfig.Password,
		MaxConn:         cfg.DatabaseConfig.MaxConn,
		MaxIdleConn:     cfg.DatabaseConfig.MaxIdleConn,
		ConnMaxLifetime: cfg.DatabaseConfig.ConnMaxLifetime,
		LogLevel:        cfg.DatabaseConfig.LogLevel,
		SSLMode:         cfg.DatabaseConfig.SSLMode,
	}

	db, err := database.InitMailpipeDatabase(dbConfig)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("mailpipe database initialization failed: %w", err)
	}
	return cfg, db, dbConfig, nil
}

func migrateCommand(_ *cli.Context) error {
	_, db, dbConfig, err := setup()
	if err != nil {
		return err
	}
	if err := repository.MigrateMailpipeDB(dbConfig, db); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Println("Database migration completed successfully")
	return nil
}

func serverCommand(_ *cli.Context) error {
	cfg, db, _, err := setup()
	if err != nil {
		return err
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Mailpipe starting up...")

	srv, err := server.NewServer(cfg, db)
	if err != nil {
		return fmt.Errorf("server setup failed: %w", err)
	}
	if err := srv.Run(); err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}

	log.Println("Shutdown complete")
	return nil
}

// oneShot builds the pipeline without the HTTP server or cron.
func oneShot() (*services.Services, logger.Logger, error) {
	cfg, db, _, err := setup()
	if err != nil {
		return nil, nil, err
	}
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	svcs, err := services.InitServices(cfg, appLogger, repository.InitRepositories(db))
	if err != nil {
		return nil, nil, err
	}
	if svcs.WorkerPool != nil {
		svcs.WorkerPool.Start()
	}
	return svcs, appLogger, nil
}

func fetchCommand(c *cli.Context) error {
	svcs, appLogger, err := oneShot()
	if err != nil {
		return err
	}

	mailboxID := c.String("mailbox")
	ctx := utils.SetAppSourceInContext(context.Background(), appSourceCLI)
	count := svcs.Fetcher.Fetch(ctx, mailboxID)
	appLogger.Infof("Fetched %d new messages for mailbox %s", count, mailboxID)

	// drains queued processing when running without a broker
	return svcs.Close()
}

func processCommand(c *cli.Context) error {
	svcs, _, err := oneShot()
	if err != nil {
		return err
	}
	defer svcs.Close()

	svcs.Processor.Process(utils.SetAppSourceInContext(context.Background(), appSourceCLI), c.String("message"))
	return nil
}
