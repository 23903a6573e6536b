package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := fromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "magazzino.db", cfg.Store.Path)
	assert.Equal(t, 15*time.Second, cfg.Sync.AckTimeout)
	assert.Equal(t, time.Second, cfg.Sync.BackoffBase)
	assert.Equal(t, 64, cfg.Alerts.QueueSize)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
	assert.Equal(t, "@hourly", cfg.Sync.ResyncSpec)
	assert.Equal(t, "0 7 * * *", cfg.Alerts.ReportSpec)
}

func TestFromViper_TareasDesactivables(t *testing.T) {
	v := viper.New()
	v.Set("SYNC_RESYNC_SPEC", "")
	v.Set("ALERTS_REPORT_SPEC", "")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Empty(t, cfg.Sync.ResyncSpec)
	assert.Empty(t, cfg.Alerts.ReportSpec)
}

func TestFromViper_Overrides(t *testing.T) {
	v := viper.New()
	v.Set("STORE_PATH", "/tmp/x.db")
	v.Set("SYNC_ACK_TIMEOUT", "3s")
	v.Set("HTTP_PORT", "9000")
	v.Set("ALERTS_DEFAULT_MIN", "10")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.Store.Path)
	assert.Equal(t, 3*time.Second, cfg.Sync.AckTimeout)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, 10.0, cfg.Alerts.DefaultMin)
}

func TestFromViper_BackoffInvalido(t *testing.T) {
	v := viper.New()
	v.Set("SYNC_BACKOFF_BASE", "10s")
	v.Set("SYNC_BACKOFF_MAX", "1s")

	_, err := fromViper(v)
	assert.Error(t, err)
}

func TestDBConfig_DSN_EscapaPassword(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss/w", DBName: "magazzino", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss%2Fw@db:5432/magazzino?sslmode=disable", c.ConnectionString())
}
