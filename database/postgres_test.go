package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPostgresConfig_DSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: "5432", User: "sku", Password: "secret",
		DBName: "catalog", SSLMode: "disable", TimeZone: "UTC",
	}
	assert.Equal(t,
		"host=db user=sku password=secret dbname=catalog port=5432 sslmode=disable TimeZone=UTC",
		cfg.DSN())
	assert.NoError(t, cfg.Validate())
}

func TestPostgresConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  PostgresConfig
		want string
	}{
		{"missing user", PostgresConfig{Password: "p", DBName: "d"}, "POSTGRES_USER"},
		{"missing password", PostgresConfig{User: "u", DBName: "d"}, "POSTGRES_PASSWORD"},
		{"missing db", PostgresConfig{User: "u", Password: "p"}, "POSTGRES_DB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}
