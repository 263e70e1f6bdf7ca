package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"trip-integrity-service/internal/model"
)

// seedStore appends n entries with ascending timestamps. Every fourth entry is
// an ERROR, the rest INFO.
func seedStore(t *testing.T, n int) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		level := model.LevelInfo
		if i%4 == 0 {
			level = model.LevelError
		}
		entry := model.AuditEntry{
			OperationType:   model.OperationValidationCheck,
			EntityType:      "vehicle",
			EntityID:        fmt.Sprintf("veh-%03d", i),
			ActionPerformed: fmt.Sprintf("validated batch %d", i),
			SeverityLevel:   level,
			PerformedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Append(context.Background(), &entry); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	return store
}

func TestNormalize(t *testing.T) {
	now := time.Date(2025, 5, 2, 12, 0, 0, 0, time.UTC)

	entry := model.AuditEntry{}
	Normalize(&entry, now)
	if entry.ID == uuid.Nil {
		t.Error("expected an ID to be assigned")
	}
	if !entry.PerformedAt.Equal(now) {
		t.Errorf("performed_at = %v, want %v", entry.PerformedAt, now)
	}

	fixedID := uuid.New()
	fixedAt := now.Add(-time.Hour)
	preset := model.AuditEntry{ID: fixedID, PerformedAt: fixedAt}
	Normalize(&preset, now)
	if preset.ID != fixedID || !preset.PerformedAt.Equal(fixedAt) {
		t.Error("Normalize must not touch already-set identity or timestamp")
	}
}

func TestSearch_NewestFirstWindow(t *testing.T) {
	store := seedStore(t, 100)

	entries, total, err := store.Search(context.Background(), model.AuditSearchFilters{
		Limit:  25,
		Offset: 75,
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 100 {
		t.Fatalf("total = %d, want 100 regardless of paging", total)
	}
	if len(entries) != 25 {
		t.Fatalf("got %d entries, want 25", len(entries))
	}
	// Newest-first: offset 75 of 100 lands on the 25 oldest entries.
	if entries[0].EntityID != "veh-024" {
		t.Errorf("first entry = %s, want veh-024", entries[0].EntityID)
	}
	if entries[24].EntityID != "veh-000" {
		t.Errorf("last entry = %s, want veh-000", entries[24].EntityID)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PerformedAt.After(entries[i-1].PerformedAt) {
			t.Fatalf("entries not ordered newest first at index %d", i)
		}
	}
}

func TestSearch_PagingCoversEverything(t *testing.T) {
	store := seedStore(t, 100)

	seen := map[string]bool{}
	for offset := 0; offset < 100; offset += 30 {
		entries, total, err := store.Search(context.Background(), model.AuditSearchFilters{
			Limit:  30,
			Offset: offset,
		})
		if err != nil {
			t.Fatal(err)
		}
		if total != 100 {
			t.Fatalf("total = %d at offset %d", total, offset)
		}
		for _, e := range entries {
			if seen[e.EntityID] {
				t.Fatalf("entry %s returned by two pages", e.EntityID)
			}
			seen[e.EntityID] = true
		}
	}
	if len(seen) != 100 {
		t.Fatalf("paging covered %d of 100 entries", len(seen))
	}
}

func TestSearch_OffsetPastEnd(t *testing.T) {
	store := seedStore(t, 10)

	entries, total, err := store.Search(context.Background(), model.AuditSearchFilters{
		Limit:  5,
		Offset: 50,
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 10 || len(entries) != 0 {
		t.Fatalf("got %d entries total %d, want 0 entries total 10", len(entries), total)
	}
}

func TestSearch_Filters(t *testing.T) {
	store := NewMemoryStore()
	at := time.Date(2025, 5, 3, 10, 0, 0, 0, time.UTC)
	entries := []model.AuditEntry{
		{
			OperationType:   model.OperationDataCorrection,
			EntityType:      "edge_case",
			EntityID:        "case-1",
			ActionPerformed: "Resolution updated to RESOLVED",
			SeverityLevel:   model.LevelInfo,
			PerformedAt:     at,
		},
		{
			OperationType:   model.OperationEdgeCaseDetection,
			EntityType:      "vehicle",
			EntityID:        "veh-1",
			ActionPerformed: "Fleet scan completed",
			SeverityLevel:   model.LevelWarning,
			PerformedAt:     at.Add(time.Minute),
		},
		{
			OperationType:   model.OperationEdgeCaseDetection,
			EntityType:      "vehicle",
			EntityID:        "veh-2",
			ActionPerformed: "Scan failed",
			SeverityLevel:   model.LevelError,
			BusinessContext: "trips could not be loaded",
			PerformedAt:     at.Add(2 * time.Minute),
		},
	}
	for i := range entries {
		if err := store.Append(context.Background(), &entries[i]); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		filters model.AuditSearchFilters
		wantIDs []string
	}{
		{
			name:    "by operation type",
			filters: model.AuditSearchFilters{OperationTypes: []model.OperationType{model.OperationDataCorrection}},
			wantIDs: []string{"case-1"},
		},
		{
			name:    "by severity",
			filters: model.AuditSearchFilters{SeverityLevels: []model.SeverityLevel{model.LevelError}},
			wantIDs: []string{"veh-2"},
		},
		{
			name:    "by entity type",
			filters: model.AuditSearchFilters{EntityTypes: []string{"vehicle"}},
			wantIDs: []string{"veh-2", "veh-1"},
		},
		{
			name:    "text search is case insensitive",
			filters: model.AuditSearchFilters{SearchText: "fleet SCAN"},
			wantIDs: []string{"veh-1"},
		},
		{
			name:    "text search covers business context",
			filters: model.AuditSearchFilters{SearchText: "could not be loaded"},
			wantIDs: []string{"veh-2"},
		},
		{
			name: "date window",
			filters: model.AuditSearchFilters{
				DateFrom: timePtr(at.Add(30 * time.Second)),
				DateTo:   timePtr(at.Add(90 * time.Second)),
			},
			wantIDs: []string{"veh-1"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, total, err := store.Search(context.Background(), tc.filters)
			if err != nil {
				t.Fatal(err)
			}
			if int(total) != len(tc.wantIDs) {
				t.Fatalf("total = %d, want %d", total, len(tc.wantIDs))
			}
			for i, want := range tc.wantIDs {
				if got[i].EntityID != want {
					t.Errorf("entry %d = %s, want %s", i, got[i].EntityID, want)
				}
			}
		})
	}
}

func TestStats(t *testing.T) {
	store := seedStore(t, 100)
	now := time.Date(2025, 5, 1, 23, 0, 0, 0, time.UTC)

	stats, err := store.Stats(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalEntries != 100 {
		t.Fatalf("total = %d", stats.TotalEntries)
	}
	// 25 of 100 entries are ERROR.
	if stats.ErrorRate != 25 {
		t.Errorf("error rate = %.1f, want 25", stats.ErrorRate)
	}
	if stats.EntriesToday != 100 {
		t.Errorf("entries today = %d, want 100", stats.EntriesToday)
	}
	if stats.ByOperationType[model.OperationValidationCheck] != 100 {
		t.Errorf("by operation type = %v", stats.ByOperationType)
	}
	if stats.BySeverity[model.LevelError] != 25 || stats.BySeverity[model.LevelInfo] != 75 {
		t.Errorf("by severity = %v", stats.BySeverity)
	}
}

// The stats error rate and a severity-filtered search must agree on what
// counts as an error.
func TestStats_ErrorRateMatchesSearch(t *testing.T) {
	store := seedStore(t, 40)
	critical := model.AuditEntry{
		OperationType:   model.OperationEdgeCaseDetection,
		EntityType:      "vehicle",
		EntityID:        "veh-crit",
		ActionPerformed: "scan aborted",
		SeverityLevel:   model.LevelCritical,
		PerformedAt:     time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Append(context.Background(), &critical); err != nil {
		t.Fatal(err)
	}

	_, errorTotal, err := store.Search(context.Background(), model.AuditSearchFilters{
		SeverityLevels: []model.SeverityLevel{model.LevelError, model.LevelCritical},
	})
	if err != nil {
		t.Fatal(err)
	}
	stats, err := store.Stats(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}

	want := float64(errorTotal) / float64(stats.TotalEntries) * 100
	if stats.ErrorRate != want {
		t.Fatalf("error rate %.2f disagrees with filtered search (%.2f)", stats.ErrorRate, want)
	}
}

func TestStats_AveragesSkipMissingScores(t *testing.T) {
	store := NewMemoryStore()
	at := time.Date(2025, 5, 4, 9, 0, 0, 0, time.UTC)
	scores := []*float64{fptr(80), fptr(90), nil}
	for i, score := range scores {
		entry := model.AuditEntry{
			OperationType:    model.OperationValidationCheck,
			EntityType:       "vehicle",
			EntityID:         fmt.Sprintf("veh-%d", i),
			ActionPerformed:  "validated",
			DataQualityScore: score,
			ConfidenceScore:  score,
			PerformedAt:      at,
		}
		if err := store.Append(context.Background(), &entry); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := store.Stats(context.Background(), at)
	if err != nil {
		t.Fatal(err)
	}
	if stats.AverageQualityScore != 85 {
		t.Errorf("average quality = %.1f, want 85", stats.AverageQualityScore)
	}
	if stats.AverageConfidence != 85 {
		t.Errorf("average confidence = %.1f, want 85", stats.AverageConfidence)
	}
}

func TestAppend_ContextCancelled(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entry := model.AuditEntry{OperationType: model.OperationValidationCheck, EntityType: "vehicle", EntityID: "v", ActionPerformed: "x"}
	if err := store.Append(ctx, &entry); err == nil {
		t.Fatal("expected a context error")
	}
	if _, total, err := store.Search(context.Background(), model.AuditSearchFilters{}); err != nil || total != 0 {
		t.Fatalf("cancelled append must not write: total=%d err=%v", total, err)
	}
}

func TestPerformer(t *testing.T) {
	if got := (model.AuditEntry{}).Performer(); got != "System" {
		t.Errorf("nil performer = %q, want System", got)
	}
	name := "Asel"
	if got := (model.AuditEntry{PerformerName: &name}).Performer(); got != "Asel" {
		t.Errorf("performer = %q", got)
	}
}

func fptr(v float64) *float64 {
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
