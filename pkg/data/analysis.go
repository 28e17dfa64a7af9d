package data

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// AnalysisListLimitDefault caps ListAnalyses when no limit is given.
	AnalysisListLimitDefault = 100

	insertAnalysisSQL = `INSERT INTO analysis (
			id, source, model, fragility_score, risk_band,
			dependency_ratio, single_point_failure, shock_amplification, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectAnalysesSQL = `SELECT id, source, model, fragility_score, risk_band,
			dependency_ratio, single_point_failure, shock_amplification, created_at
		FROM analysis
		ORDER BY created_at DESC
		LIMIT ?`

	countAnalysesSQL = `SELECT COUNT(*) FROM analysis`
)

// Analysis is one audit log entry of a scored household.
type Analysis struct {
	ID                 string    `json:"id" yaml:"id"`
	Source             string    `json:"source" yaml:"source"`
	Model              string    `json:"model" yaml:"model"`
	FragilityScore     float64   `json:"fragility_score" yaml:"fragilityScore"`
	RiskBand           string    `json:"risk_band" yaml:"riskBand"`
	DependencyRatio    float64   `json:"dependency_ratio" yaml:"dependencyRatio"`
	SinglePointFailure int       `json:"single_point_failure" yaml:"singlePointFailure"`
	ShockAmplification float64   `json:"shock_amplification" yaml:"shockAmplification"`
	CreatedAt          time.Time `json:"created_at" yaml:"createdAt"`
}

// SaveAnalysis appends entries to the audit log. Missing ids and timestamps
// are filled in.
func (s *Store) SaveAnalysis(ctx context.Context, list ...*Analysis) error {
	if err := s.check(); err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.rebind(insertAnalysisSQL))
	if err != nil {
		return fmt.Errorf("failed to prepare analysis statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, a := range list {
		if a == nil {
			continue
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, a.ID, a.Source, a.Model, a.FragilityScore, a.RiskBand,
			a.DependencyRatio, a.SinglePointFailure, a.ShockAmplification, formatTime(a.CreatedAt)); err != nil {
			return fmt.Errorf("failed to insert analysis %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListAnalyses returns up to limit entries, newest first.
func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]*Analysis, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = AnalysisListLimitDefault
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(selectAnalysesSQL), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	list := make([]*Analysis, 0)
	for rows.Next() {
		var (
			a       Analysis
			created string
		)
		if err := rows.Scan(&a.ID, &a.Source, &a.Model, &a.FragilityScore, &a.RiskBand,
			&a.DependencyRatio, &a.SinglePointFailure, &a.ShockAmplification, &created); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		list = append(list, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}
	return list, nil
}

// CountAnalyses returns the number of audit log entries.
func (s *Store) CountAnalyses(ctx context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, countAnalysesSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return n, nil
}
