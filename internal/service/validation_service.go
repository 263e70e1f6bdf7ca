package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"trip-integrity-service/internal/audit"
	"trip-integrity-service/internal/cache"
	"trip-integrity-service/internal/model"
	"trip-integrity-service/internal/validator"
)

type ValidationService struct {
	trips           TripSource
	validator       *validator.Validator
	recorder        audit.Recorder
	cache           *cache.Cache
	log             zerolog.Logger
	opTimeout       time.Duration
	scanConcurrency int
}

func NewValidationService(
	trips TripSource,
	v *validator.Validator,
	recorder audit.Recorder,
	cacheClient *cache.Cache,
	log zerolog.Logger,
	opTimeout time.Duration,
	scanConcurrency int,
) *ValidationService {
	if opTimeout <= 0 {
		opTimeout = 30 * time.Second
	}
	if scanConcurrency <= 0 {
		scanConcurrency = 4
	}
	return &ValidationService{
		trips:           trips,
		validator:       v,
		recorder:        recorder,
		cache:           cacheClient,
		log:             log,
		opTimeout:       opTimeout,
		scanConcurrency: scanConcurrency,
	}
}

// ValidateVehicleTrips scores every trip of one vehicle, in source order.
func (s *ValidationService) ValidateVehicleTrips(ctx context.Context, principal model.Principal, vehicleID uuid.UUID) ([]model.ValidationResult, error) {
	if !principal.CanRead() {
		return nil, ErrPermissionDenied
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	started := time.Now()
	vehicle, trips, err := s.fetchVehicleTrips(ctx, principal, vehicleID)
	if err != nil {
		return nil, err
	}

	results := s.validateSequence(trips)
	summary := validator.Summarize(results)

	s.recordValidationRun(ctx, vehicle, summary, time.Since(started))
	s.recordSequenceFindings(ctx, vehicle, results)
	s.recordReturnTripFindings(ctx, vehicle, trips)

	return results, nil
}

// QualitySummary aggregates validation scores across the fleet, or across a
// single vehicle when vehicleID is set.
func (s *ValidationService) QualitySummary(ctx context.Context, principal model.Principal, vehicleID *uuid.UUID) (model.DataQualitySummary, error) {
	if !principal.CanRead() {
		return model.DataQualitySummary{}, ErrPermissionDenied
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if vehicleID != nil {
		_, trips, err := s.fetchVehicleTrips(ctx, principal, *vehicleID)
		if err != nil {
			return model.DataQualitySummary{}, err
		}
		return validator.Summarize(s.validateSequence(trips)), nil
	}

	orgID := principal.OrgFilter()
	cacheKey := qualityCacheKey(orgID)

	var cached model.DataQualitySummary
	if s.cache.Get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	vehicles, err := s.trips.ListVehicles(ctx, orgID)
	if err != nil {
		return model.DataQualitySummary{}, s.mapStoreError(err, "list vehicles")
	}

	var mu sync.Mutex
	var all []model.ValidationResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.scanConcurrency)
	for _, vehicle := range vehicles {
		vehicle := vehicle
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			trips, err := s.trips.TripsByVehicle(gctx, vehicle.ID)
			if err != nil {
				return fmt.Errorf("trips for vehicle %s: %w", vehicle.ID, err)
			}
			results := s.validateSequence(trips)
			mu.Lock()
			all = append(all, results...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.DataQualitySummary{}, s.mapStoreError(err, "fleet quality scan")
	}

	summary := validator.Summarize(all)
	s.cache.Set(ctx, cacheKey, summary)
	return summary, nil
}

// validateSequence validates trips in order, threading each trip's closing
// odometer reading into the next trip's context.
func (s *ValidationService) validateSequence(trips []model.Trip) []model.ValidationResult {
	results := make([]model.ValidationResult, 0, len(trips))
	var prevEndKM *float64
	for _, trip := range trips {
		results = append(results, s.validator.Validate(trip, prevEndKM))
		if trip.EndKM != nil {
			prevEndKM = trip.EndKM
		}
	}
	return results
}

func (s *ValidationService) fetchVehicleTrips(ctx context.Context, principal model.Principal, vehicleID uuid.UUID) (*model.Vehicle, []model.Trip, error) {
	vehicle, err := s.trips.GetVehicle(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, s.mapStoreError(err, "get vehicle")
	}
	if orgID := principal.OrgFilter(); orgID != nil && vehicle.OrganizationID != *orgID {
		return nil, nil, ErrNotFound
	}
	trips, err := s.trips.TripsByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, nil, s.mapStoreError(err, "list trips")
	}
	return vehicle, trips, nil
}

func (s *ValidationService) recordValidationRun(ctx context.Context, vehicle *model.Vehicle, summary model.DataQualitySummary, elapsed time.Duration) {
	level := model.LevelInfo
	if summary.CriticalIssues > 0 {
		level = model.LevelWarning
	}
	score := summary.AverageScore
	duration := elapsed.Milliseconds()
	s.recordAudit(ctx, &model.AuditEntry{
		OperationType:     model.OperationValidationCheck,
		OperationCategory: "trip_validation",
		EntityType:        "vehicle",
		EntityID:          vehicle.ID.String(),
		EntityDescription: vehicle.Registration,
		ActionPerformed: fmt.Sprintf("Validated %d trips: %d critical, %d high, %d medium, %d low issues",
			summary.TotalTrips, summary.CriticalIssues, summary.HighIssues, summary.MediumIssues, summary.LowIssues),
		SeverityLevel:       level,
		DataQualityScore:    &score,
		OperationDurationMS: &duration,
	})
}

// recordSequenceFindings emits one monitoring entry when odometer continuity
// warnings were raised across the vehicle's sheet sequence.
func (s *ValidationService) recordSequenceFindings(ctx context.Context, vehicle *model.Vehicle, results []model.ValidationResult) {
	gaps := 0
	for _, r := range results {
		for _, w := range r.Warnings {
			if w.Field == "start_km" {
				gaps++
			}
		}
	}
	if gaps == 0 {
		return
	}
	s.recordAudit(ctx, &model.AuditEntry{
		OperationType:     model.OperationSequenceMonitoring,
		OperationCategory: "odometer_continuity",
		EntityType:        "vehicle",
		EntityID:          vehicle.ID.String(),
		EntityDescription: vehicle.Registration,
		ActionPerformed:   fmt.Sprintf("Found %d odometer continuity gaps across the trip sequence", gaps),
		SeverityLevel:     model.LevelWarning,
	})
}

// recordReturnTripFindings flags outbound/return pairs whose distances
// disagree beyond tolerance. A return leg should roughly mirror its outbound
// leg on the same route.
func (s *ValidationService) recordReturnTripFindings(ctx context.Context, vehicle *model.Vehicle, trips []model.Trip) {
	mismatches := 0
	for i := 1; i < len(trips); i++ {
		if !strings.Contains(strings.ToLower(trips[i].Remarks), "return") {
			continue
		}
		outbound, ok1 := trips[i-1].Distance()
		ret, ok2 := trips[i].Distance()
		if !ok1 || !ok2 || outbound <= 0 || ret <= 0 {
			continue
		}
		if math.Abs(ret-outbound)/outbound > 0.2 {
			mismatches++
		}
	}
	if mismatches == 0 {
		return
	}
	s.recordAudit(ctx, &model.AuditEntry{
		OperationType:     model.OperationReturnTripValidation,
		OperationCategory: "return_trip_distance",
		EntityType:        "vehicle",
		EntityID:          vehicle.ID.String(),
		EntityDescription: vehicle.Registration,
		ActionPerformed:   fmt.Sprintf("Found %d return trips whose distance deviates more than 20%% from the outbound leg", mismatches),
		SeverityLevel:     model.LevelWarning,
	})
}

// recordAudit appends an entry without letting audit failures fail the
// operation being audited. The write is decoupled from the caller's
// cancellation so a finished operation still gets its entry.
func (s *ValidationService) recordAudit(ctx context.Context, entry *model.AuditEntry) {
	if err := s.recorder.Append(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn().Err(err).
			Str("operation_type", string(entry.OperationType)).
			Msg("audit entry lost")
	}
}

func (s *ValidationService) mapStoreError(err error, op string) error {
	s.log.Error().Err(err).Str("op", op).Msg("record store failure")
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
}

func qualityCacheKey(orgID *uuid.UUID) string {
	if orgID == nil {
		return "integrity:quality:fleet"
	}
	return "integrity:quality:org:" + orgID.String()
}
