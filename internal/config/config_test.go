package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	require.True(t, cfg.App.CastPrice.Equal(decimal.RequireFromString("0.1")))
	require.Equal(t, 2, cfg.App.MaxEmbeds)
	require.Equal(t, time.Second, cfg.App.ThreadPostDelay)
	require.Equal(t, 5, cfg.RapidAPI.RequestsPerWindow)
	require.Equal(t, time.Second, cfg.RapidAPI.Window)
	require.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsInvalidPrice(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CAST_PRICE_USDC", "free")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("CAST_PRICE_USDC", "0")
	_, err = Load()
	require.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: "5432", User: "u", Password: "p", DBName: "casts", SSLMode: "require",
	}}
	require.Equal(t, "host=db port=5432 user=u password=p dbname=casts sslmode=require", cfg.GetDSN())
}
