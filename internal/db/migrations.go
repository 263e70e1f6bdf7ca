package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'issue_severity') THEN
			CREATE TYPE issue_severity AS ENUM ('CRITICAL', 'HIGH', 'MEDIUM', 'LOW');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'edge_case_type') THEN
			CREATE TYPE edge_case_type AS ENUM ('MAINTENANCE_TRIP', 'EMERGENCY_TRIP', 'DATA_ANOMALY', 'BREAKDOWN_TRIP', 'UNUSUAL_PATTERN', 'RECOVERY_SCENARIO');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'resolution_status') THEN
			CREATE TYPE resolution_status AS ENUM ('PENDING', 'IN_PROGRESS', 'RESOLVED', 'DISMISSED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'audit_operation_type') THEN
			CREATE TYPE audit_operation_type AS ENUM ('DATA_CORRECTION', 'VALIDATION_CHECK', 'EDGE_CASE_DETECTION', 'BASELINE_MANAGEMENT', 'SEQUENCE_MONITORING', 'RETURN_TRIP_VALIDATION');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'audit_severity_level') THEN
			CREATE TYPE audit_severity_level AS ENUM ('CRITICAL', 'ERROR', 'WARNING', 'INFO');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'trip_provenance') THEN
			CREATE TYPE trip_provenance AS ENUM ('RECORDED', 'IMPORTED', 'ESTIMATED');
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'trips' AND column_name = 'provenance') THEN
			ALTER TABLE trips ADD COLUMN provenance trip_provenance NOT NULL DEFAULT 'RECORDED';
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS edge_cases (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		case_type edge_case_type NOT NULL,
		severity issue_severity NOT NULL,
		confidence_score DOUBLE PRECISION NOT NULL,
		vehicle_id UUID NOT NULL REFERENCES vehicles(id) ON DELETE CASCADE,
		vehicle_registration VARCHAR(32),
		trip_id UUID REFERENCES trips(id) ON DELETE SET NULL,
		description TEXT,
		patterns_detected JSONB NOT NULL DEFAULT '[]',
		context JSONB NOT NULL DEFAULT '{}',
		auto_actions_taken JSONB NOT NULL DEFAULT '[]',
		recommendations JSONB NOT NULL DEFAULT '[]',
		resolution_status resolution_status NOT NULL DEFAULT 'PENDING',
		requires_manual_review BOOLEAN NOT NULL DEFAULT FALSE,
		detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_edge_cases_vehicle_id ON edge_cases (vehicle_id);`,
	`CREATE INDEX IF NOT EXISTS idx_edge_cases_trip_id ON edge_cases (trip_id);`,
	`CREATE INDEX IF NOT EXISTS idx_edge_cases_resolution_status ON edge_cases (resolution_status);`,
	`CREATE INDEX IF NOT EXISTS idx_edge_cases_detected_at ON edge_cases (detected_at);`,
	`CREATE TABLE IF NOT EXISTS audit_trail (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		operation_type audit_operation_type NOT NULL,
		operation_category VARCHAR(64),
		entity_type VARCHAR(64) NOT NULL,
		entity_id VARCHAR(64) NOT NULL,
		entity_description TEXT,
		action_performed TEXT NOT NULL,
		performer_name VARCHAR(255),
		severity_level audit_severity_level,
		confidence_score DOUBLE PRECISION,
		business_context TEXT,
		changes_made JSONB,
		validation_results JSONB,
		data_quality_score DOUBLE PRECISION,
		operation_duration_ms BIGINT,
		performed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_trail_operation_type ON audit_trail (operation_type);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_trail_severity_level ON audit_trail (severity_level);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_trail_entity_type ON audit_trail (entity_type);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_trail_performed_at ON audit_trail (performed_at);`,
	// The audit trail is append-only; revoking UPDATE/DELETE backs the
	// application-level guarantee at the store.
	`DO $$
	BEGIN
		REVOKE UPDATE, DELETE ON audit_trail FROM PUBLIC;
	EXCEPTION WHEN OTHERS THEN
		NULL;
	END
	$$;`,
	`CREATE OR REPLACE FUNCTION set_row_updated_at()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_edge_cases_updated_at') THEN
			CREATE TRIGGER trg_edge_cases_updated_at
			BEFORE UPDATE ON edge_cases
			FOR EACH ROW EXECUTE FUNCTION set_row_updated_at();
		END IF;
	END
	$$;`,
}

func runMigrations(database *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := database.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
