package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learnupon-exporter/pkg/config"
)

func TestDriverName(t *testing.T) {
	name, err := DriverName(config.DatabaseConfig{})
	require.NoError(t, err)
	assert.Equal(t, "postgres", name)

	name, err = DriverName(config.DatabaseConfig{Driver: config.DriverPGX})
	require.NoError(t, err)
	assert.Equal(t, "pgx", name)

	_, err = DriverName(config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "edx", Password: "pw", Name: "edxapp", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=edx password=pw dbname=edxapp sslmode=disable", dsn)
}
