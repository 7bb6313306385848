package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/benmeehan/pin-locator/internal/models"
	"github.com/rs/zerolog"
)

// SQLiteStore keeps pins in the pins table. Order is given by seq, highest first.
type SQLiteStore struct {
	DB     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore creates a SQLiteStore on a database prepared by InitSchema.
func NewSQLiteStore(db *sql.DB, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{DB: db, logger: logger}
}

const pinColumns = `
		id,
		latitude,
		longitude,
		address,
		city,
		country_code,
		date,
		time,
		map_image_url,
		note,
		accuracy,
		source,
		created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPin(row rowScanner) (models.Pin, error) {
	var p models.Pin
	var createdAt string
	err := row.Scan(&p.ID, &p.Latitude, &p.Longitude, &p.Address, &p.City, &p.CountryCode,
		&p.Date, &p.Time, &p.MapImageURL, &p.Note, &p.Accuracy, &p.Source, &createdAt)
	if err != nil {
		return models.Pin{}, err
	}
	if createdAt != "" {
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return models.Pin{}, fmt.Errorf("parse created_at of pin %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func formatCreatedAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func insertPin(ctx context.Context, tx *sql.Tx, p models.Pin, seq int64) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO pins (`+pinColumns+`,
		seq
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, p.ID, p.Latitude, p.Longitude, p.Address, p.City, p.CountryCode, p.Date, p.Time,
		p.MapImageURL, p.Note, p.Accuracy, p.Source, formatCreatedAt(p.CreatedAt), seq)
	return err
}

func maxSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM pins;`).Scan(&seq)
	return seq, err
}

// List implements PinRepository.
func (s *SQLiteStore) List(ctx context.Context) ([]models.Pin, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+pinColumns+` FROM pins ORDER BY seq DESC;`)
	if err != nil {
		return nil, fmt.Errorf("list pins: query pins table: %w", err)
	}
	defer rows.Close()

	pins := make([]models.Pin, 0, 64)
	for rows.Next() {
		p, err := scanPin(rows)
		if err != nil {
			return nil, fmt.Errorf("list pins: scan row: %w", err)
		}
		pins = append(pins, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pins: row iteration: %w", err)
	}
	return pins, nil
}

// Get implements PinRepository.
func (s *SQLiteStore) Get(ctx context.Context, id string) (models.Pin, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+pinColumns+` FROM pins WHERE id = ?;`, id)
	p, err := scanPin(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Pin{}, ErrPinNotFound
	}
	if err != nil {
		return models.Pin{}, fmt.Errorf("get pin %s: %w", id, err)
	}
	return p, nil
}

// Add implements PinRepository.
func (s *SQLiteStore) Add(ctx context.Context, pin models.Pin) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add pin: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM pins WHERE id = ?;`, pin.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("add pin: check id: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicatePin, pin.ID)
	}

	seq, err := maxSeq(ctx, tx)
	if err != nil {
		return fmt.Errorf("add pin: read seq: %w", err)
	}
	if err := insertPin(ctx, tx, pin, seq+1); err != nil {
		return fmt.Errorf("add pin %s: %w", pin.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add pin: commit tx: %w", err)
	}
	return nil
}

// UpdateNote implements PinRepository.
func (s *SQLiteStore) UpdateNote(ctx context.Context, id, note string) (models.Pin, error) {
	res, err := s.DB.ExecContext(ctx, `UPDATE pins SET note = ? WHERE id = ?;`, note, id)
	if err != nil {
		return models.Pin{}, fmt.Errorf("update note of pin %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Pin{}, fmt.Errorf("update note of pin %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return models.Pin{}, ErrPinNotFound
	}
	return s.Get(ctx, id)
}

// Delete implements PinRepository.
func (s *SQLiteStore) Delete(ctx context.Context, id string) (models.Pin, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Pin{}, fmt.Errorf("delete pin: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := scanPin(tx.QueryRowContext(ctx, `SELECT `+pinColumns+` FROM pins WHERE id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Pin{}, ErrPinNotFound
	}
	if err != nil {
		return models.Pin{}, fmt.Errorf("delete pin %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pins WHERE id = ?;`, id); err != nil {
		return models.Pin{}, fmt.Errorf("delete pin %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return models.Pin{}, fmt.Errorf("delete pin: commit tx: %w", err)
	}
	return p, nil
}

// DeleteAll implements PinRepository.
func (s *SQLiteStore) DeleteAll(ctx context.Context) (int, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM pins;`)
	if err != nil {
		return 0, fmt.Errorf("delete all pins: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete all pins: rows affected: %w", err)
	}
	return int(n), nil
}

// Merge implements PinRepository.
func (s *SQLiteStore) Merge(ctx context.Context, incoming []models.Pin) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("merge pins: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM pins;`)
	if err != nil {
		return 0, fmt.Errorf("merge pins: query ids: %w", err)
	}
	existing := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("merge pins: scan id: %w", err)
		}
		existing[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("merge pins: row iteration: %w", err)
	}
	rows.Close()

	added := newPins(existing, incoming)
	if len(added) == 0 {
		return 0, nil
	}

	seq, err := maxSeq(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("merge pins: read seq: %w", err)
	}
	// The first imported pin gets the highest seq so the file order is kept at the front.
	for i, p := range added {
		if err := insertPin(ctx, tx, p, seq+int64(len(added)-i)); err != nil {
			return 0, fmt.Errorf("merge pins: insert %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("merge pins: commit tx: %w", err)
	}
	s.logger.Debug().Int("added", len(added)).Int("skipped", len(incoming)-len(added)).Msg("Merged pins")
	return len(added), nil
}

// Close implements PinRepository.
func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}
