package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"trip-integrity-service/internal/audit"
	"trip-integrity-service/internal/cache"
	"trip-integrity-service/internal/detector"
	"trip-integrity-service/internal/model"
)

type EdgeCaseService struct {
	trips           TripSource
	cases           CaseStore
	detector        *detector.Detector
	recorder        audit.Recorder
	cache           *cache.Cache
	log             zerolog.Logger
	opTimeout       time.Duration
	scanConcurrency int
	recentCap       int
}

func NewEdgeCaseService(
	trips TripSource,
	cases CaseStore,
	d *detector.Detector,
	recorder audit.Recorder,
	cacheClient *cache.Cache,
	log zerolog.Logger,
	opTimeout time.Duration,
	scanConcurrency int,
	recentCap int,
) *EdgeCaseService {
	if opTimeout <= 0 {
		opTimeout = 60 * time.Second
	}
	if scanConcurrency <= 0 {
		scanConcurrency = 4
	}
	if recentCap <= 0 {
		recentCap = 50
	}
	return &EdgeCaseService{
		trips:           trips,
		cases:           cases,
		detector:        d,
		recorder:        recorder,
		cache:           cacheClient,
		log:             log,
		opTimeout:       opTimeout,
		scanConcurrency: scanConcurrency,
		recentCap:       recentCap,
	}
}

// SystemWideEdgeCases scans every visible vehicle, persists new detections
// and returns the dashboard overview. One failing vehicle never aborts the
// scan; the overview reports it as incomplete instead. Cancelling ctx stops
// the scan between vehicles.
func (s *EdgeCaseService) SystemWideEdgeCases(ctx context.Context, principal model.Principal) (model.EdgeCaseOverview, error) {
	if !principal.CanRead() {
		return model.EdgeCaseOverview{}, ErrPermissionDenied
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	orgID := principal.OrgFilter()
	cacheKey := overviewCacheKey(orgID)

	var cached model.EdgeCaseOverview
	if s.cache.Get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	started := time.Now()
	vehicles, err := s.trips.ListVehicles(ctx, orgID)
	if err != nil {
		s.log.Error().Err(err).Msg("record store failure listing vehicles")
		return model.EdgeCaseOverview{}, fmt.Errorf("list vehicles: %w", ErrStoreUnavailable)
	}

	var failed int32
	var created int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.scanConcurrency)
	for _, vehicle := range vehicles {
		vehicle := vehicle
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := s.scanVehicle(gctx, vehicle)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				s.log.Warn().Err(err).
					Str("vehicle_id", vehicle.ID.String()).
					Msg("edge case scan failed for vehicle, continuing")
				s.recordScanFailure(gctx, vehicle, err)
				return nil
			}
			atomic.AddInt64(&created, int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.EdgeCaseOverview{}, fmt.Errorf("edge case scan: %w", err)
	}

	overview, err := s.buildOverview(ctx, orgID, int(atomic.LoadInt32(&failed)))
	if err != nil {
		return model.EdgeCaseOverview{}, err
	}

	s.recordScanRun(ctx, len(vehicles), atomic.LoadInt64(&created), int(atomic.LoadInt32(&failed)), time.Since(started))
	s.cache.Set(ctx, cacheKey, overview)
	return overview, nil
}

// scanVehicle runs the detectors over one vehicle and persists detections
// that are not already open for the same trip and type.
func (s *EdgeCaseService) scanVehicle(ctx context.Context, vehicle model.Vehicle) (int, error) {
	trips, err := s.trips.TripsByVehicle(ctx, vehicle.ID)
	if err != nil {
		return 0, fmt.Errorf("fetch trips: %w", err)
	}

	created := 0
	for _, edgeCase := range s.detector.Analyze(vehicle, trips) {
		if edgeCase.TripID != nil {
			open, err := s.cases.HasOpenCase(ctx, *edgeCase.TripID, edgeCase.CaseType)
			if err != nil {
				return created, fmt.Errorf("dedupe check: %w", err)
			}
			if open {
				continue
			}
		}
		edgeCase := edgeCase
		if err := s.cases.Create(ctx, &edgeCase); err != nil {
			return created, fmt.Errorf("persist detection: %w", err)
		}
		created++
	}
	return created, nil
}

func (s *EdgeCaseService) buildOverview(ctx context.Context, orgID *uuid.UUID, failedVehicles int) (model.EdgeCaseOverview, error) {
	counts, err := s.cases.Counts(ctx, orgID)
	if err != nil {
		return model.EdgeCaseOverview{}, fmt.Errorf("case counts: %w", ErrStoreUnavailable)
	}
	recent, err := s.cases.Recent(ctx, orgID, s.recentCap)
	if err != nil {
		return model.EdgeCaseOverview{}, fmt.Errorf("recent cases: %w", ErrStoreUnavailable)
	}
	return model.EdgeCaseOverview{
		TotalCasesDetected: counts.Total,
		PendingReviews:     counts.Pending,
		CasesByType:        counts.ByType,
		CasesBySeverity:    counts.BySeverity,
		RecentDetections:   recent,
		ScanIncomplete:     failedVehicles > 0,
		FailedVehicles:     failedVehicles,
	}, nil
}

// AnalyzeDataRecovery proposes ranked corrections for one vehicle's
// inconsistent trips. An empty result means no inconsistencies were found.
func (s *EdgeCaseService) AnalyzeDataRecovery(ctx context.Context, principal model.Principal, vehicleID uuid.UUID) ([]model.DataRecoveryScenario, error) {
	if !principal.CanRead() {
		return nil, ErrPermissionDenied
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	vehicle, err := s.trips.GetVehicle(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get vehicle: %w", ErrStoreUnavailable)
	}
	if orgID := principal.OrgFilter(); orgID != nil && vehicle.OrganizationID != *orgID {
		return nil, ErrNotFound
	}

	trips, err := s.trips.TripsByVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", ErrStoreUnavailable)
	}

	scenarios := s.detector.AnalyzeRecovery(*vehicle, trips)
	if scenarios == nil {
		scenarios = []model.DataRecoveryScenario{}
	}

	s.recordAudit(ctx, &model.AuditEntry{
		OperationType:     model.OperationEdgeCaseDetection,
		OperationCategory: "data_recovery",
		EntityType:        "vehicle",
		EntityID:          vehicle.ID.String(),
		EntityDescription: vehicle.Registration,
		ActionPerformed:   fmt.Sprintf("Generated %d data recovery scenarios", len(scenarios)),
		SeverityLevel:     model.LevelInfo,
	})
	return scenarios, nil
}

// UpdateResolution moves one edge case through the reviewer workflow.
func (s *EdgeCaseService) UpdateResolution(ctx context.Context, principal model.Principal, caseID uuid.UUID, target model.ResolutionStatus, note string) (*model.EdgeCase, error) {
	if !principal.CanResolve() {
		return nil, ErrPermissionDenied
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	orgID := principal.OrgFilter()
	edgeCase, err := s.cases.GetByID(ctx, orgID, caseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get edge case: %w", ErrStoreUnavailable)
	}
	if !edgeCase.CanTransitionTo(target) {
		return nil, ErrInvalidStatus
	}

	if err := s.cases.UpdateResolution(ctx, edgeCase.ID, target); err != nil {
		return nil, fmt.Errorf("update resolution: %w", ErrStoreUnavailable)
	}

	performer := principal.Name
	confidence := edgeCase.ConfidenceScore
	s.recordAudit(ctx, &model.AuditEntry{
		OperationType:     model.OperationDataCorrection,
		OperationCategory: "edge_case_resolution",
		EntityType:        "edge_case",
		EntityID:          edgeCase.ID.String(),
		EntityDescription: edgeCase.Description,
		ActionPerformed:   fmt.Sprintf("Resolution changed from %s to %s", edgeCase.ResolutionStatus, target),
		PerformerName:     &performer,
		SeverityLevel:     model.LevelInfo,
		ConfidenceScore:   &confidence,
		BusinessContext:   note,
		ChangesMade: datatypes.JSONMap{
			"resolution_status": map[string]interface{}{
				"from": string(edgeCase.ResolutionStatus),
				"to":   string(target),
			},
		},
	})

	s.cache.Invalidate(ctx, overviewCacheKey(orgID), overviewCacheKey(nil))

	edgeCase.ResolutionStatus = target
	return edgeCase, nil
}

func (s *EdgeCaseService) recordScanFailure(ctx context.Context, vehicle model.Vehicle, scanErr error) {
	s.recordAudit(ctx, &model.AuditEntry{
		OperationType:     model.OperationEdgeCaseDetection,
		OperationCategory: "fleet_scan",
		EntityType:        "vehicle",
		EntityID:          vehicle.ID.String(),
		EntityDescription: vehicle.Registration,
		ActionPerformed:   "Vehicle skipped during fleet scan: " + scanErr.Error(),
		SeverityLevel:     model.LevelError,
	})
}

func (s *EdgeCaseService) recordScanRun(ctx context.Context, vehicles int, created int64, failed int, elapsed time.Duration) {
	level := model.LevelInfo
	if failed > 0 {
		level = model.LevelWarning
	}
	duration := elapsed.Milliseconds()
	s.recordAudit(ctx, &model.AuditEntry{
		OperationType:     model.OperationEdgeCaseDetection,
		OperationCategory: "fleet_scan",
		EntityType:        "fleet",
		EntityID:          "system",
		ActionPerformed: fmt.Sprintf("Scanned %d vehicles: %d new detections, %d vehicles failed",
			vehicles, created, failed),
		SeverityLevel:       level,
		OperationDurationMS: &duration,
	})
	// Baselines are recomputed from history on every scan rather than stored.
	s.recordAudit(ctx, &model.AuditEntry{
		OperationType:     model.OperationBaselineManagement,
		OperationCategory: "fleet_scan",
		EntityType:        "fleet",
		EntityID:          "system",
		ActionPerformed:   fmt.Sprintf("Recomputed statistical baselines for %d vehicles", vehicles),
		SeverityLevel:     model.LevelInfo,
	})
}

func (s *EdgeCaseService) recordAudit(ctx context.Context, entry *model.AuditEntry) {
	if err := s.recorder.Append(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Warn().Err(err).
			Str("operation_type", string(entry.OperationType)).
			Msg("audit entry lost")
	}
}

func overviewCacheKey(orgID *uuid.UUID) string {
	if orgID == nil {
		return "integrity:edgecases:fleet"
	}
	return "integrity:edgecases:org:" + orgID.String()
}
