package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/trakwell/pipetrak/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"pipetrak"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type ImportOptions struct {
	MaxRows         int           `env:"IMPORT_MAX_ROWS" envDefault:"20000"`
	BatchSize       int           `env:"IMPORT_BATCH_SIZE" envDefault:"5000"`
	ChunkSize       int           `env:"IMPORT_CHUNK_SIZE" envDefault:"150"`
	TxTimeout       time.Duration `env:"IMPORT_TX_TIMEOUT" envDefault:"30s"`
	MaxColumns      int           `env:"IMPORT_MAX_COLUMNS" envDefault:"27"`
	StrictByDefault bool          `env:"IMPORT_STRICT_DEFAULT" envDefault:"true"`
}

// Validate checks the import configuration for errors
func (o *ImportOptions) Validate() error {
	if o.MaxRows <= 0 {
		return fmt.Errorf("import MaxRows must be positive, got %d", o.MaxRows)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("import BatchSize must be positive, got %d", o.BatchSize)
	}
	if o.ChunkSize <= 0 || o.ChunkSize > 1000 {
		return fmt.Errorf("import ChunkSize must be in (0, 1000], got %d", o.ChunkSize)
	}
	if o.TxTimeout <= 0 {
		return fmt.Errorf("import TxTimeout must be positive, got %s", o.TxTimeout)
	}
	return nil
}

type Configuration struct {
	Database DatabaseOptions
	Import   ImportOptions

	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	MigrationsDir    string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/app.log"`

	// Row-level project scoping (disabled/enforce).
	ProjectScopeEnforce string `env:"PROJECT_SCOPE_ENFORCE" envDefault:"disabled"`

	logFile *os.File
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}
	if err := c.validateProjectScope(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

func (c *Configuration) validateProjectScope() error {
	mode := strings.ToLower(strings.TrimSpace(c.ProjectScopeEnforce))
	switch mode {
	case "", "disabled", "enforce":
		c.ProjectScopeEnforce = mode
		return nil
	default:
		return fmt.Errorf("invalid PROJECT_SCOPE_ENFORCE: %q (want disabled or enforce)", c.ProjectScopeEnforce)
	}
}

func (c *Configuration) Unload() {
	if c.logFile != nil {
		_ = c.logFile.Close()
		c.logFile = nil
	}
}
