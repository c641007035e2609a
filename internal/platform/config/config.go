package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa todo lo configurable del proceso. Se llena desde env
// (nombres históricos: PORT, DB_DSN, LOG_LEVEL...) y opcionalmente desde un YAML.
type Config struct {
	App       string          `mapstructure:"app_name"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	DB        DBConfig        `mapstructure:"db"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Dev       DevConfig       `mapstructure:"dev"`
}

type HTTPConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
	// StrictRecipients descarta receptores compartidos cuyo vínculo de
	// consentimiento ya no está aceptado al momento del envío.
	StrictRecipients bool          `mapstructure:"strict_recipients"`
	NotifyTimeout    time.Duration `mapstructure:"notify_timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NotifierConfig struct {
	Driver     string   `mapstructure:"driver"` // log|webhook|kafka|sqs, CSV para varios
	WebhookURL string   `mapstructure:"webhook_url"`
	Brokers    []string `mapstructure:"kafka_brokers"`
	Topic      string   `mapstructure:"kafka_topic"`
	QueueURL   string   `mapstructure:"sqs_queue_url"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

// DevConfig solo aplica sin DB: usuarios sembrados en el directorio en memoria.
type DevConfig struct {
	Users       []string `mapstructure:"users"`       // "id:email"
	Medications []string `mapstructure:"medications"` // "id:patient[:YYYY-MM-DD]"
}

const (
	DefaultPollInterval = 30 * time.Second
	DefaultConcurrency  = 4
)

var envBindings = map[string]string{
	"app_name":                    "APP_NAME",
	"http.port":                   "PORT",
	"log.level":                   "LOG_LEVEL",
	"log.format":                  "LOG_FORMAT",
	"db.dsn":                      "DB_DSN",
	"db.auto_migrate":             "DB_AUTO_MIGRATE",
	"scheduler.enabled":           "SCHEDULER_ENABLED",
	"scheduler.poll_interval":     "SCHEDULER_POLL_INTERVAL",
	"scheduler.concurrency":       "SCHEDULER_CONCURRENCY",
	"scheduler.strict_recipients": "SCHEDULER_STRICT_RECIPIENTS",
	"scheduler.notify_timeout":    "SCHEDULER_NOTIFY_TIMEOUT",
	"redis.addr":                  "REDIS_ADDR",
	"redis.password":              "REDIS_PASSWORD",
	"redis.db":                    "REDIS_DB",
	"notifier.driver":             "NOTIFIER_DRIVER",
	"notifier.webhook_url":        "NOTIFIER_WEBHOOK_URL",
	"notifier.kafka_brokers":      "KAFKA_BROKERS",
	"notifier.kafka_topic":        "KAFKA_TOPIC",
	"notifier.sqs_queue_url":      "SQS_QUEUE_URL",
	"auth.jwt_secret":             "JWT_SECRET",
	"auth.jwt_issuer":             "JWT_ISSUER",
	"dev.users":                   "DEV_USERS",
	"dev.medications":             "DEV_MEDICATIONS",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("app_name", "medication-reminders")
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.read_timeout", 5*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.poll_interval", DefaultPollInterval)
	v.SetDefault("scheduler.concurrency", DefaultConcurrency)
	v.SetDefault("scheduler.strict_recipients", false)
	v.SetDefault("scheduler.notify_timeout", 10*time.Second)
	v.SetDefault("notifier.driver", "log")
	v.SetDefault("notifier.kafka_topic", "reminder-notifications")

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	return v
}

// Load lee configPath (si no está vacío) y aplica overrides de env.
func Load(configPath string) (Config, error) {
	v := newViper()

	if strings.TrimSpace(configPath) != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	// env CSV -> slice (viper no lo separa solo)
	cfg.Notifier.Brokers = splitCSV(cfg.Notifier.Brokers)
	cfg.Dev.Users = splitCSV(cfg.Dev.Users)
	cfg.Dev.Medications = splitCSV(cfg.Dev.Medications)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Scheduler.PollInterval <= 0 {
		return errors.New("scheduler.poll_interval must be > 0")
	}
	if c.Scheduler.Concurrency <= 0 {
		return errors.New("scheduler.concurrency must be > 0")
	}

	for _, driver := range c.Notifier.Drivers() {
		if err := c.Notifier.validateDriver(driver); err != nil {
			return err
		}
	}
	return nil
}

// Drivers separa notifier.driver ("log,kafka"); vacío equivale a "log".
func (n NotifierConfig) Drivers() []string {
	out := make([]string, 0, 1)
	for _, d := range strings.Split(n.Driver, ",") {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = append(out, "log")
	}
	return out
}

func (n NotifierConfig) validateDriver(driver string) error {
	switch driver {
	case "log":
	case "webhook":
		if strings.TrimSpace(n.WebhookURL) == "" {
			return errors.New("notifier.webhook_url required for webhook driver")
		}
	case "kafka":
		if len(n.Brokers) == 0 || strings.TrimSpace(n.Topic) == "" {
			return errors.New("notifier.kafka_brokers and notifier.kafka_topic required for kafka driver")
		}
	case "sqs":
		if strings.TrimSpace(n.QueueURL) == "" {
			return errors.New("notifier.sqs_queue_url required for sqs driver")
		}
	default:
		return fmt.Errorf("unknown notifier.driver %q", driver)
	}
	return nil
}

func splitCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
