package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/necta-results-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "necta",
		Password: "secret",
		Name:     "results",
		SSLMode:  "require",
	})
	assert.Equal(t, "host=db port=5433 user=necta password=secret dbname=results sslmode=require application_name=necta-results-api", dsn)
}
