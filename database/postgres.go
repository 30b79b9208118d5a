package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresConfig holds the connection settings read from POSTGRES_* env vars.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
}

// DSN renders the libpq keyword/value connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode, c.TimeZone,
	)
}

// Validate reports the first missing required setting.
func (c PostgresConfig) Validate() error {
	switch {
	case c.User == "":
		return fmt.Errorf("POSTGRES_USER environment variable not set")
	case c.Password == "":
		return fmt.Errorf("POSTGRES_PASSWORD environment variable not set")
	case c.DBName == "":
		return fmt.Errorf("POSTGRES_DB environment variable not set")
	}
	return nil
}

const (
	connectAttempts = 10
	connectBackoff  = 2 * time.Second
)

// ConnectPostgres opens the catalog database, retrying while the server comes
// up. Unique violations are translated to gorm.ErrDuplicatedKey.
func ConnectPostgres(cfg PostgresConfig, log *zap.Logger) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
		if err == nil {
			log.Info("Connected to PostgreSQL", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
			return db, nil
		}
		log.Warn("PostgreSQL connection failed",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", connectAttempts),
			zap.Error(err))
		time.Sleep(connectBackoff)
	}
	return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
}
