// internal/history/store.go
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ethics-advisor/internal/common/logger"
	"ethics-advisor/internal/models"

	"github.com/google/uuid"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

var (
	ErrHistoryInsertFailed = errors.New("HISTORY_INSERT_FAILED")
	ErrHistoryQueryFailed  = errors.New("HISTORY_QUERY_FAILED")
)

// Store persists consultation records and their audit trail in Postgres.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With(map[string]interface{}{"component": "history"}),
	}
}

// EnsureSchema creates the history tables when they do not exist yet.
// Safe to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS consultations (
			id UUID PRIMARY KEY,
			question TEXT NOT NULL,
			agency TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL DEFAULT '',
			narrative TEXT NOT NULL,
			federal_law_sources INT NOT NULL DEFAULT 0,
			web_sources INT NOT NULL DEFAULT 0,
			elapsed_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS consultations_agency_created_idx
			ON consultations (agency, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			event_type TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			details JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure history schema: %w", err)
		}
	}
	return nil
}

// Record inserts one consultation row plus its audit entry. The audit
// insert is non-critical and only logs on failure.
func (s *Store) Record(ctx context.Context, rec *models.ConsultationRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consultations (
			id, question, agency, severity, narrative,
			federal_law_sources, web_sources, elapsed_seconds, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id,
		rec.Question,
		rec.Agency,
		rec.Severity,
		rec.Narrative,
		rec.FederalLawSources,
		rec.WebSources,
		rec.ElapsedSeconds,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert failed: %v", ErrHistoryInsertFailed, err)
	}

	detailsJSON, err := json.Marshal(map[string]interface{}{
		"consultationId":    id,
		"agency":            rec.Agency,
		"severity":          rec.Severity,
		"federalLawSources": rec.FederalLawSources,
		"webSources":        rec.WebSources,
	})
	if err != nil {
		s.log.Warn("Failed to marshal audit log details", map[string]interface{}{
			"error": err,
		})
		detailsJSON = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"consultation_recorded",
		"consultation",
		id,
		detailsJSON,
		rec.CreatedAt,
	)
	if err != nil {
		s.log.Warn("Audit log insert failed", map[string]interface{}{
			"error":          err,
			"consultationId": id,
		})
	}

	s.log.Info("Consultation recorded", map[string]interface{}{
		"consultationId": id,
		"agency":         rec.Agency,
		"severity":       rec.Severity,
	})
	return nil
}

// RecentByAgency returns the newest consultations, optionally filtered by
// agency. A non-positive limit falls back to the default page size.
func (s *Store) RecentByAgency(ctx context.Context, agency string, limit int) ([]models.ConsultationRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	var (
		rows *sql.Rows
		err  error
	)
	if agency == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, question, agency, severity, narrative,
			       federal_law_sources, web_sources, elapsed_seconds, created_at
			FROM consultations
			ORDER BY created_at DESC
			LIMIT $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, question, agency, severity, narrative,
			       federal_law_sources, web_sources, elapsed_seconds, created_at
			FROM consultations
			WHERE agency = $1
			ORDER BY created_at DESC
			LIMIT $2`, agency, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query failed: %v", ErrHistoryQueryFailed, err)
	}
	defer rows.Close()

	records := make([]models.ConsultationRecord, 0, limit)
	for rows.Next() {
		var rec models.ConsultationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Question,
			&rec.Agency,
			&rec.Severity,
			&rec.Narrative,
			&rec.FederalLawSources,
			&rec.WebSources,
			&rec.ElapsedSeconds,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan failed: %v", ErrHistoryQueryFailed, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration failed: %v", ErrHistoryQueryFailed, err)
	}

	return records, nil
}
