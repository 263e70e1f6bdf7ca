package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"trip-integrity-service/internal/audit"
	"trip-integrity-service/internal/model"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
	exportLimit        = 10000
)

// csvHeader is the fixed export header; consumers key on these column names.
var csvHeader = []string{
	"Date", "Operation Type", "Entity Type", "Entity ID", "Action",
	"Performed By", "Severity", "Confidence Score", "Business Context",
}

type AuditService struct {
	store     audit.Store
	log       zerolog.Logger
	opTimeout time.Duration
}

func NewAuditService(store audit.Store, log zerolog.Logger, opTimeout time.Duration) *AuditService {
	if opTimeout <= 0 {
		opTimeout = 30 * time.Second
	}
	return &AuditService{store: store, log: log, opTimeout: opTimeout}
}

// Record appends one entry. Exposed for external callers (manual correction
// flows) that audit through this service rather than a component recorder.
func (s *AuditService) Record(ctx context.Context, entry *model.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opTimeout)
	defer cancel()
	if err := s.store.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).Msg("audit entry lost")
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *AuditService) Search(ctx context.Context, principal model.Principal, filters model.AuditSearchFilters) (model.AuditSearchResult, error) {
	if !principal.CanRead() {
		return model.AuditSearchResult{}, ErrPermissionDenied
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if filters.Limit <= 0 {
		filters.Limit = defaultSearchLimit
	}
	if filters.Limit > maxSearchLimit {
		filters.Limit = maxSearchLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	entries, total, err := s.store.Search(ctx, filters)
	if err != nil {
		s.log.Error().Err(err).Msg("audit search failed")
		return model.AuditSearchResult{}, fmt.Errorf("audit search: %w", ErrStoreUnavailable)
	}
	return model.AuditSearchResult{Entries: entries, Total: total}, nil
}

func (s *AuditService) Stats(ctx context.Context, principal model.Principal) (model.AuditStats, error) {
	if !principal.CanRead() {
		return model.AuditStats{}, ErrPermissionDenied
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	stats, err := s.store.Stats(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("audit stats failed")
		return model.AuditStats{}, fmt.Errorf("audit stats: %w", ErrStoreUnavailable)
	}
	return stats, nil
}

// ExportCSV renders the filtered trail as CSV with the fixed header row.
func (s *AuditService) ExportCSV(ctx context.Context, principal model.Principal, filters model.AuditSearchFilters) ([]byte, error) {
	if !principal.CanRead() {
		return nil, ErrPermissionDenied
	}
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	filters.Offset = 0
	filters.Limit = exportLimit
	entries, _, err := s.store.Search(ctx, filters)
	if err != nil {
		s.log.Error().Err(err).Msg("audit export failed")
		return nil, fmt.Errorf("audit export: %w", ErrStoreUnavailable)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, entry := range entries {
		confidence := ""
		if entry.ConfidenceScore != nil {
			confidence = strconv.FormatFloat(*entry.ConfidenceScore, 'f', 1, 64)
		}
		record := []string{
			entry.PerformedAt.Format(time.RFC3339),
			string(entry.OperationType),
			entry.EntityType,
			entry.EntityID,
			entry.ActionPerformed,
			entry.Performer(),
			string(entry.SeverityLevel),
			confidence,
			entry.BusinessContext,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
