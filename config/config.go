package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	AppEnv   string
	LogLevel string

	JWTSecret string
	TokenTTL  time.Duration
	SaltRound int

	VerificationBaseURL string
	OrganizationName    string

	Database DatabaseConfig

	CertificateStore string // sql or mongo
	MongoURI         string
	MongoDatabase    string

	Mail    MailConfig
	Render  RenderConfig
	Archive ArchiveConfig

	ExpirySchedule      string
	LogViewDedupeWindow time.Duration
	LogViewCounts       bool // logged views increment the verification count
}

// DatabaseConfig describes the relational store used for accounts and, by default, certificates.
type DatabaseConfig struct {
	Driver       string // postgres, mysql or sqlite
	URL          string
	Host         string
	User         string
	Password     string
	Name         string
	Port         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// MailConfig selects and configures the mail transport.
type MailConfig struct {
	Provider       string // smtp, sendgrid or ses
	Username       string
	Password       string // SMTP Password
	SMTPHost       string
	SMTPPort       int
	From           string
	FromName       string
	SendGridAPIKey string
	AWSRegion      string
}

// RenderConfig controls certificate HTML composition and PDF capture.
type RenderConfig struct {
	TemplatePath   string
	AssetDir       string
	AssetManifest  string
	BrowserBin     string
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	DeviceScale    float64
	PaperFormat    string
}

// ArchiveConfig enables uploading issued PDFs to S3 when Bucket is set.
type ArchiveConfig struct {
	Bucket string
	Prefix string
	Region string
}

const (
	StoreSQL   = "sql"
	StoreMongo = "mongo"

	MailSMTP     = "smtp"
	MailSendGrid = "sendgrid"
	MailSES      = "ses"
)

// LoadConfig initializes configuration from environment variables (and a .env file if present).
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "5000"),
		AppEnv:   getEnv("APP_ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 7*24*time.Hour),
		SaltRound: getEnvInt("SALT_ROUND", 10),

		VerificationBaseURL: strings.TrimRight(os.Getenv("VERIFICATION_BASE_URL"), "/"),
		OrganizationName:    getEnv("ORGANIZATION_NAME", "Broadbeach Online"),

		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			URL:          os.Getenv("DATABASE_URL"),
			Host:         os.Getenv("DB_HOST"),
			User:         os.Getenv("DB_USER"),
			Password:     os.Getenv("DB_PASSWORD"),
			Name:         os.Getenv("DB_NAME"),
			Port:         getEnv("DB_PORT", "5432"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},

		CertificateStore: getEnv("CERT_STORE", StoreSQL),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "certificates"),

		Mail: MailConfig{
			Provider:       getEnv("MAIL_PROVIDER", MailSMTP),
			Username:       os.Getenv("EMAIL_USER"),
			Password:       os.Getenv("EMAIL_PASS"),
			SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:       getEnvInt("SMTP_PORT", 587),
			From:           getEnv("MAIL_FROM", os.Getenv("EMAIL_USER")),
			FromName:       getEnv("MAIL_FROM_NAME", "LMS Platform"),
			SendGridAPIKey: os.Getenv("SENDGRID_API_KEY"),
			AWSRegion:      os.Getenv("AWS_REGION"),
		},

		Render: RenderConfig{
			TemplatePath:   os.Getenv("TEMPLATE_PATH"),
			AssetDir:       getEnv("ASSET_DIR", "./assets"),
			AssetManifest:  os.Getenv("ASSET_MANIFEST"),
			BrowserBin:     os.Getenv("BROWSER_BIN"),
			Timeout:        getEnvDuration("RENDER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getEnvInt("RENDER_VIEWPORT_WIDTH", 1280),
			ViewportHeight: getEnvInt("RENDER_VIEWPORT_HEIGHT", 720),
			DeviceScale:    getEnvFloat("RENDER_DEVICE_SCALE", 2),
			PaperFormat:    strings.ToUpper(getEnv("PAPER_FORMAT", "A4")),
		},

		Archive: ArchiveConfig{
			Bucket: os.Getenv("ARCHIVE_BUCKET"),
			Prefix: getEnv("ARCHIVE_PREFIX", "certificates/"),
			Region: os.Getenv("AWS_REGION"),
		},

		ExpirySchedule:      getEnv("EXPIRY_SCHEDULE", "0 1 * * *"),
		LogViewDedupeWindow: getEnvDuration("LOG_VIEW_DEDUPE_WINDOW", 10*time.Minute),
		LogViewCounts:       getEnvBool("LOG_VIEW_COUNTS", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every required setting that is missing or malformed.
func (c *Config) Validate() error {
	var missing []string

	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.VerificationBaseURL == "" {
		missing = append(missing, "VERIFICATION_BASE_URL")
	}
	if c.Port == "" {
		missing = append(missing, "PORT")
	}

	switch c.Database.Driver {
	case "postgres", "mysql":
		if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
			missing = append(missing, "DATABASE_URL (or DB_HOST and DB_NAME)")
		}
	case "sqlite":
		if c.Database.URL == "" && c.Database.Name == "" {
			missing = append(missing, "DATABASE_URL (or DB_NAME)")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	switch c.CertificateStore {
	case StoreSQL:
	case StoreMongo:
		if c.MongoURI == "" {
			missing = append(missing, "MONGO_URI")
		}
	default:
		return fmt.Errorf("unsupported CERT_STORE %q", c.CertificateStore)
	}

	switch c.Mail.Provider {
	case MailSMTP:
		if c.Mail.Username == "" {
			missing = append(missing, "EMAIL_USER")
		}
		if c.Mail.Password == "" {
			missing = append(missing, "EMAIL_PASS")
		}
	case MailSendGrid:
		if c.Mail.SendGridAPIKey == "" {
			missing = append(missing, "SENDGRID_API_KEY")
		}
		if c.Mail.From == "" {
			missing = append(missing, "MAIL_FROM")
		}
	case MailSES:
		if c.Mail.AWSRegion == "" {
			missing = append(missing, "AWS_REGION")
		}
		if c.Mail.From == "" {
			missing = append(missing, "MAIL_FROM")
		}
	default:
		return fmt.Errorf("unsupported MAIL_PROVIDER %q", c.Mail.Provider)
	}

	if c.Render.PaperFormat != "A4" && c.Render.PaperFormat != "LETTER" {
		return fmt.Errorf("unsupported PAPER_FORMAT %q", c.Render.PaperFormat)
	}

	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development" || c.AppEnv == "dev"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to bool: %v", key, err)
		return defaultValue
	}
	return b
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("Error converting environment variable %s to float: %v", key, err)
		return defaultValue
	}
	return f
}

// getEnvDuration accepts Go duration strings ("30s", "168h") and a trailing "d" for days.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if strings.HasSuffix(value, "d") {
		if days, err := strconv.Atoi(strings.TrimSuffix(value, "d")); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to duration: %v", key, err)
		return defaultValue
	}
	return d
}
