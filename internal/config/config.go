package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	TTL           time.Duration
}

// ScoringConfig holds the per-severity score penalties. Warnings are
// advisory and never deduct.
type ScoringConfig struct {
	CriticalPenalty   float64
	HighPenalty       float64
	MediumPenalty     float64
	LowPenalty        float64
	OdometerGapKM     float64
	RouteDeviationPct float64
}

type DetectorConfig struct {
	DistanceZScore        float64
	OutlierZScore         float64
	EmergencySpeedKPH     float64
	MaintenanceMaxKM      float64
	MaintenanceMinHours   float64
	ReviewConfidenceFloor float64
	MinRecoveryScore      float64
	ScanConcurrency       int
	RecentDetectionsCap   int
}

type Config struct {
	Environment      string
	HTTP             HTTPConfig
	DB               DBConfig
	Auth             AuthConfig
	Cache            CacheConfig
	Scoring          ScoringConfig
	Detector         DetectorConfig
	OperationTimeout time.Duration
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetInt("HTTP_PORT"),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Cache: CacheConfig{
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			TTL:           v.GetDuration("CACHE_TTL"),
		},
		Scoring: ScoringConfig{
			CriticalPenalty:   v.GetFloat64("SCORE_PENALTY_CRITICAL"),
			HighPenalty:       v.GetFloat64("SCORE_PENALTY_HIGH"),
			MediumPenalty:     v.GetFloat64("SCORE_PENALTY_MEDIUM"),
			LowPenalty:        v.GetFloat64("SCORE_PENALTY_LOW"),
			OdometerGapKM:     v.GetFloat64("ODOMETER_GAP_KM"),
			RouteDeviationPct: v.GetFloat64("ROUTE_DEVIATION_PCT"),
		},
		Detector: DetectorConfig{
			DistanceZScore:        v.GetFloat64("DETECTOR_DISTANCE_ZSCORE"),
			OutlierZScore:         v.GetFloat64("DETECTOR_OUTLIER_ZSCORE"),
			EmergencySpeedKPH:     v.GetFloat64("DETECTOR_EMERGENCY_SPEED_KPH"),
			MaintenanceMaxKM:      v.GetFloat64("DETECTOR_MAINTENANCE_MAX_KM"),
			MaintenanceMinHours:   v.GetFloat64("DETECTOR_MAINTENANCE_MIN_HOURS"),
			ReviewConfidenceFloor: v.GetFloat64("DETECTOR_REVIEW_CONFIDENCE_FLOOR"),
			MinRecoveryScore:      v.GetFloat64("DETECTOR_MIN_RECOVERY_SCORE"),
			ScanConcurrency:       v.GetInt("SCAN_CONCURRENCY"),
			RecentDetectionsCap:   v.GetInt("RECENT_DETECTIONS_CAP"),
		},
		OperationTimeout: v.GetDuration("OPERATION_TIMEOUT"),
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7091
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 30 * time.Second
	}
	if cfg.Scoring.CriticalPenalty <= 0 {
		cfg.Scoring.CriticalPenalty = 50
	}
	if cfg.Scoring.HighPenalty <= 0 {
		cfg.Scoring.HighPenalty = 20
	}
	if cfg.Scoring.MediumPenalty <= 0 {
		cfg.Scoring.MediumPenalty = 10
	}
	if cfg.Scoring.LowPenalty <= 0 {
		cfg.Scoring.LowPenalty = 5
	}
	if cfg.Scoring.OdometerGapKM <= 0 {
		cfg.Scoring.OdometerGapKM = 50
	}
	if cfg.Scoring.RouteDeviationPct <= 0 {
		cfg.Scoring.RouteDeviationPct = 50
	}
	if cfg.Detector.DistanceZScore <= 0 {
		cfg.Detector.DistanceZScore = 3
	}
	if cfg.Detector.OutlierZScore <= 0 {
		cfg.Detector.OutlierZScore = 2.5
	}
	if cfg.Detector.EmergencySpeedKPH <= 0 {
		cfg.Detector.EmergencySpeedKPH = 85
	}
	if cfg.Detector.MaintenanceMaxKM <= 0 {
		cfg.Detector.MaintenanceMaxKM = 5
	}
	if cfg.Detector.MaintenanceMinHours <= 0 {
		cfg.Detector.MaintenanceMinHours = 4
	}
	if cfg.Detector.ReviewConfidenceFloor <= 0 {
		cfg.Detector.ReviewConfidenceFloor = 60
	}
	if cfg.Detector.MinRecoveryScore <= 0 {
		cfg.Detector.MinRecoveryScore = 55
	}
	if cfg.Detector.ScanConcurrency <= 0 {
		cfg.Detector.ScanConcurrency = 4
	}
	if cfg.Detector.RecentDetectionsCap <= 0 {
		cfg.Detector.RecentDetectionsCap = 50
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 30 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	return nil
}
