package main

import (
	"fmt"
	"os"

	"trip-integrity-service/internal/auth"
	"trip-integrity-service/internal/cache"
	"trip-integrity-service/internal/config"
	"trip-integrity-service/internal/db"
	"trip-integrity-service/internal/detector"
	httphandler "trip-integrity-service/internal/http"
	"trip-integrity-service/internal/http/middleware"
	"trip-integrity-service/internal/logger"
	"trip-integrity-service/internal/repository"
	"trip-integrity-service/internal/service"
	"trip-integrity-service/internal/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	tripRepo := repository.NewTripRepository(database)
	caseRepo := repository.NewEdgeCaseRepository(database)
	auditRepo := repository.NewAuditRepository(database)

	cacheClient := cache.New(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.TTL, log)

	tripValidator := validator.New(
		validator.Penalties{
			Critical: cfg.Scoring.CriticalPenalty,
			High:     cfg.Scoring.HighPenalty,
			Medium:   cfg.Scoring.MediumPenalty,
			Low:      cfg.Scoring.LowPenalty,
		},
		cfg.Scoring.OdometerGapKM,
		cfg.Scoring.RouteDeviationPct,
	)
	caseDetector := detector.New(detector.Thresholds{
		DistanceZScore:        cfg.Detector.DistanceZScore,
		OutlierZScore:         cfg.Detector.OutlierZScore,
		EmergencySpeedKPH:     cfg.Detector.EmergencySpeedKPH,
		MaintenanceMaxKM:      cfg.Detector.MaintenanceMaxKM,
		MaintenanceMinHours:   cfg.Detector.MaintenanceMinHours,
		ReviewConfidenceFloor: cfg.Detector.ReviewConfidenceFloor,
		MinRecoveryScore:      cfg.Detector.MinRecoveryScore,
	})

	validationService := service.NewValidationService(
		tripRepo, tripValidator, auditRepo, cacheClient, log,
		cfg.OperationTimeout, cfg.Detector.ScanConcurrency,
	)
	edgeCaseService := service.NewEdgeCaseService(
		tripRepo, caseRepo, caseDetector, auditRepo, cacheClient, log,
		cfg.OperationTimeout, cfg.Detector.ScanConcurrency, cfg.Detector.RecentDetectionsCap,
	)
	auditService := service.NewAuditService(auditRepo, log, cfg.OperationTimeout)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)

	handler := httphandler.NewHandler(validationService, edgeCaseService, auditService, log)
	router := httphandler.NewRouter(handler, middleware.Auth(tokenParser), cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting trip integrity service")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
