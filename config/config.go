package config

type AppConfig struct {
	APIPort       string `env:"PORT,required" envDefault:"12222"`
	APIKey        string `env:"API_KEY,required"`
	RabbitMQURL   string `env:"RABBITMQ_URL"`
	RedisURL      string `env:"REDIS_URL"`
	WorkerCount   int    `env:"WORKER_COUNT" envDefault:"4"`
	FetchInterval string `env:"FETCH_INTERVAL" envDefault:"5m"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILPIPE_POSTGRES_HOST,required"`
	Port            string `env:"MAILPIPE_POSTGRES_PORT,required"`
	User            string `env:"MAILPIPE_POSTGRES_USER,required"`
	DBName          string `env:"MAILPIPE_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILPIPE_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILPIPE_POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"MAILPIPE_POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"MAILPIPE_POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"MAILPIPE_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILPIPE_POSTGRES_SSL_MODE" envDefault:"require"`
}

type AIConfig struct {
	ApiKey         string `env:"OPENAI_API_KEY"`
	Model          string `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	Url            string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	TimeoutSeconds int    `env:"OPENAI_TIMEOUT_SECONDS" envDefault:"60"`
}

// IMAPOverrideConfig replaces the connection fields of every mailbox when set.
type IMAPOverrideConfig struct {
	Host     string `env:"IMAP_HOST"`
	Port     int    `env:"IMAP_PORT"`
	Username string `env:"IMAP_USERNAME"`
	Password string `env:"IMAP_PASSWORD"`
}

type OperatorConfig struct {
	TelegramBotToken string `env:"OPERATOR_TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"OPERATOR_TELEGRAM_CHAT_ID"`
}

type IntegrationEndpoints struct {
	TelegramUrl string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	TrelloUrl   string `env:"TRELLO_API_URL" envDefault:"https://api.trello.com"`
}
