package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/necta-results-api/internal/scoring"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Cache    CacheConfig
	Grading  GradingConfig
	Exports  ExportsConfig
	Workers  WorkerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig governs caching of computed class reports.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// GradingConfig holds the NECTA selection policy knobs.
type GradingConfig struct {
	ALevelBestN         int
	ALevelMinQualifying int
	OLevelBestN         int
	OLevelMinQualifying int
	ExcludedSubjects    []string
	OLevelCMin          float64
	RankBy              string
	RequireCombination  bool
}

// ExportsConfig configures result sheet exports.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// WorkerConfig sizes the background recompute queue and batch fan-out.
type WorkerConfig struct {
	Concurrency      int
	Retries          int
	BatchConcurrency int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	cfg.Grading = GradingConfig{
		ALevelBestN:         v.GetInt("GRADING_ALEVEL_BEST_N"),
		ALevelMinQualifying: v.GetInt("GRADING_ALEVEL_MIN_QUALIFYING"),
		OLevelBestN:         v.GetInt("GRADING_OLEVEL_BEST_N"),
		OLevelMinQualifying: v.GetInt("GRADING_OLEVEL_MIN_QUALIFYING"),
		ExcludedSubjects:    splitAndTrim(v.GetString("GRADING_EXCLUDED_SUBJECTS")),
		OLevelCMin:          v.GetFloat64("GRADING_OLEVEL_C_MIN"),
		RankBy:              v.GetString("GRADING_RANK_BY"),
		RequireCombination:  v.GetBool("GRADING_REQUIRE_COMBINATION"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Workers = WorkerConfig{
		Concurrency:      v.GetInt("WORKER_CONCURRENCY"),
		Retries:          v.GetInt("WORKER_RETRIES"),
		BatchConcurrency: v.GetInt("BATCH_CONCURRENCY"),
	}

	return cfg
}

// EngineConfig converts the grading settings into a scoring configuration.
// The result still has to pass scoring.Config.Validate.
func (g GradingConfig) EngineConfig() (scoring.Config, error) {
	rankBy, err := scoring.ParseRankBasis(g.RankBy)
	if err != nil {
		return scoring.Config{}, err
	}
	cfg := scoring.Config{
		Advanced: scoring.LevelPolicy{
			BestN:            g.ALevelBestN,
			MinQualifying:    g.ALevelMinQualifying,
			ExcludedSubjects: g.ExcludedSubjects,
		},
		Ordinary: scoring.LevelPolicy{
			BestN:            g.OLevelBestN,
			MinQualifying:    g.OLevelMinQualifying,
			ExcludedSubjects: g.ExcludedSubjects,
			IgnorePrincipal:  true,
		},
		OLevelCMin:         g.OLevelCMin,
		RankBy:             rankBy,
		RequireCombination: g.RequireCombination,
	}
	if err := cfg.Validate(); err != nil {
		return scoring.Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "necta_results")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CACHE_TTL", "10m")

	v.SetDefault("GRADING_ALEVEL_BEST_N", 3)
	v.SetDefault("GRADING_ALEVEL_MIN_QUALIFYING", 3)
	v.SetDefault("GRADING_OLEVEL_BEST_N", 0)
	v.SetDefault("GRADING_OLEVEL_MIN_QUALIFYING", 7)
	v.SetDefault("GRADING_EXCLUDED_SUBJECTS", "general studies")
	v.SetDefault("GRADING_OLEVEL_C_MIN", scoring.DefaultOLevelCMin)
	v.SetDefault("GRADING_RANK_BY", string(scoring.RankByAverage))
	v.SetDefault("GRADING_REQUIRE_COMBINATION", false)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("WORKER_CONCURRENCY", 1)
	v.SetDefault("WORKER_RETRIES", 3)
	v.SetDefault("BATCH_CONCURRENCY", 4)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
