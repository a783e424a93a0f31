package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		FootballDataAPIKey:   "key",
		DatabasePassword:     "secret",
		ReconcileConcurrency: 4,
		APIBurstLimit:        10,
		FixturePollInterval:  5 * time.Minute,
		PointsExact:          3,
		PointsOutcome:        1,
		PointsMiss:           0,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing api key", mutate: func(c *Config) { c.FootballDataAPIKey = "" }, wantErr: "FOOTBALLDATA_API_KEY"},
		{name: "missing db password", mutate: func(c *Config) { c.DatabasePassword = "" }, wantErr: "DATABASE_PASSWORD"},
		{name: "zero concurrency", mutate: func(c *Config) { c.ReconcileConcurrency = 0 }, wantErr: "RECONCILE_CONCURRENCY"},
		{name: "inverted points", mutate: func(c *Config) { c.PointsOutcome = 5 }, wantErr: "POINTS_EXACT"},
		{name: "telegram without token", mutate: func(c *Config) { c.TelegramEnabled = true }, wantErr: "TELEGRAM_BOT_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FOOTBALLDATA_API_KEY", "abc")
	t.Setenv("DATABASE_PASSWORD", "pw")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://api.football-data.org/v1", cfg.FootballDataBaseURL)
	assert.Equal(t, 30*time.Second, cfg.FootballDataTimeout)
	assert.Equal(t, 3, cfg.PointsExact)
	assert.Equal(t, 1, cfg.PointsOutcome)
	assert.Equal(t, 24*time.Hour, cfg.TeamCacheTTL())
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
}

func TestParseTournamentSeeds(t *testing.T) {
	doc := []byte(`
tournaments:
  - name: Premier League
    remote_id: 426
  - name: Primera Division
    remote_id: 436
`)

	seeds, err := ParseTournamentSeeds(doc)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "Premier League", seeds[0].Name)
	assert.Equal(t, 436, seeds[1].RemoteID)
}

func TestParseTournamentSeeds_Invalid(t *testing.T) {
	_, err := ParseTournamentSeeds([]byte("tournaments:\n  - name: X\n    remote_id: 0\n"))
	assert.Error(t, err)

	_, err = ParseTournamentSeeds([]byte("tournaments:\n  - name: A\n    remote_id: 1\n  - name: B\n    remote_id: 1\n"))
	assert.ErrorContains(t, err, "duplicate")
}

func TestLoadTournamentSeeds_File(t *testing.T) {
	seeds, err := LoadTournamentSeeds("")
	require.NoError(t, err)
	assert.Nil(t, seeds)

	path := filepath.Join(t.TempDir(), "tournaments.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tournaments:\n  - name: Serie A\n    remote_id: 438\n"), 0o600))

	seeds, err = LoadTournamentSeeds(path)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, 438, seeds[0].RemoteID)
}
