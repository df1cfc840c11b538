package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/necta-results-api/internal/scoring"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 3, cfg.Grading.ALevelBestN)
	assert.Equal(t, 7, cfg.Grading.OLevelMinQualifying)
	assert.Equal(t, []string{"general studies"}, cfg.Grading.ExcludedSubjects)
	assert.Equal(t, 45.0, cfg.Grading.OLevelCMin)
	assert.Equal(t, 4, cfg.Workers.BatchConcurrency)

	engineCfg, err := cfg.Grading.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultConfig(), engineCfg)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("GRADING_RANK_BY", "points")
	t.Setenv("GRADING_OLEVEL_C_MIN", "50")
	t.Setenv("GRADING_EXCLUDED_SUBJECTS", "General Studies, Divinity")
	t.Setenv("EXPORTS_SIGNED_URL_TTL", "90m")
	t.Setenv("CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"General Studies", "Divinity"}, cfg.Grading.ExcludedSubjects)
	assert.Equal(t, 90*time.Minute, cfg.Exports.SignedURLTTL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)

	engineCfg, err := cfg.Grading.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, scoring.RankByPoints, engineCfg.RankBy)
	assert.Equal(t, 50.0, engineCfg.OLevelCMin)
}

func TestEngineConfigRejectsInvalidPolicy(t *testing.T) {
	grading := GradingConfig{ALevelBestN: 3, ALevelMinQualifying: 4, OLevelMinQualifying: 7, OLevelCMin: 45}
	_, err := grading.EngineConfig()
	require.ErrorIs(t, err, scoring.ErrInvalidPolicy)

	grading = GradingConfig{ALevelBestN: 3, ALevelMinQualifying: 3, OLevelMinQualifying: 7, OLevelCMin: 45, RankBy: "height"}
	_, err = grading.EngineConfig()
	require.ErrorIs(t, err, scoring.ErrInvalidPolicy)
}
