package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mchmarny/fragility/pkg/feature"
	"github.com/mchmarny/fragility/pkg/synth"
)

const (
	insertDatasetSQL = `INSERT INTO dataset (id, name, seed, row_count, created_at)
		VALUES (?, ?, ?, ?, ?)`

	selectDatasetsSQL = `SELECT id, name, seed, row_count, created_at
		FROM dataset
		ORDER BY created_at DESC`

	selectDatasetSQL = `SELECT id, name, seed, row_count, created_at
		FROM dataset
		WHERE id = ?`

	deleteDatasetRowsSQL = `DELETE FROM training_row WHERE dataset_id = ?`
	deleteDatasetSQL     = `DELETE FROM dataset WHERE id = ?`
)

// ErrDatasetNotFound is returned for an unknown dataset id.
var ErrDatasetNotFound = errors.New("dataset not found")

// Dataset describes a stored batch of training rows.
type Dataset struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Seed      uint64    `json:"seed" yaml:"seed"`
	Rows      int       `json:"rows" yaml:"rows"`
	CreatedAt time.Time `json:"created_at" yaml:"createdAt"`
}

// training_row columns follow the feature order, then the label.
func rowColumns() []string {
	cols := make([]string, 0, feature.Count+3)
	cols = append(cols, "dataset_id", "row_index")
	return append(cols, synth.Header()...)
}

func insertRowSQL() string {
	cols := rowColumns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO training_row (%s) VALUES (%s)", strings.Join(cols, ", "), marks)
}

func selectRowsSQL() string {
	return fmt.Sprintf("SELECT %s FROM training_row WHERE dataset_id = ? ORDER BY row_index",
		strings.Join(synth.Header(), ", "))
}

// SaveDataset stores rows under a new dataset in one transaction.
func (s *Store) SaveDataset(ctx context.Context, name string, seed uint64, rows []synth.Row) (*Dataset, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	ds := &Dataset{
		ID:        uuid.NewString(),
		Name:      name,
		Seed:      seed,
		Rows:      len(rows),
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// seed keeps its bits through the signed column
	if _, err := tx.ExecContext(ctx, s.rebind(insertDatasetSQL),
		ds.ID, ds.Name, int64(ds.Seed), ds.Rows, formatTime(ds.CreatedAt)); err != nil {
		return nil, fmt.Errorf("failed to insert dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(insertRowSQL()))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare row statement: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(rowColumns()))
	for i, r := range rows {
		args[0] = ds.ID
		args[1] = i
		for j, v := range r.Features {
			args[j+2] = v
		}
		args[feature.Count+2] = r.FragilityScore
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return nil, fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ds, nil
}

// ListDatasets returns stored datasets, newest first.
func (s *Store) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, selectDatasetsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	list := make([]*Dataset, 0)
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate datasets: %w", err)
	}
	return list, nil
}

// GetDataset returns the dataset with id.
func (s *Store) GetDataset(ctx context.Context, id string) (*Dataset, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	ds, err := scanDataset(s.db.QueryRowContext(ctx, s.rebind(selectDatasetSQL), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	return ds, err
}

// GetDatasetRows returns the rows of dataset id in generation order.
func (s *Store) GetDatasetRows(ctx context.Context, id string) ([]synth.Row, error) {
	if _, err := s.GetDataset(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(selectRowsSQL()), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows of dataset %s: %w", id, err)
	}
	defer rows.Close()

	list := make([]synth.Row, 0)
	dest := make([]any, feature.Count+1)
	for rows.Next() {
		var r synth.Row
		for i := range r.Features {
			dest[i] = &r.Features[i]
		}
		dest[feature.Count] = &r.FragilityScore
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return list, nil
}

// DeleteDataset removes a dataset and its rows.
func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	if _, err := s.GetDataset(ctx, id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.rebind(deleteDatasetRowsSQL), id); err != nil {
		return fmt.Errorf("failed to delete rows of dataset %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(deleteDatasetSQL), id); err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", id, err)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(sc scanner) (*Dataset, error) {
	var (
		ds      Dataset
		seed    int64
		created string
	)
	if err := sc.Scan(&ds.ID, &ds.Name, &seed, &ds.Rows, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan dataset: %w", err)
	}
	ds.Seed = uint64(seed)

	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	ds.CreatedAt = t
	return &ds, nil
}
