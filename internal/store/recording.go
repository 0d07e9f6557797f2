package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/ayusman/minime/internal/landmark"
)

// Recording is a captured tracking session.
type Recording struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SkeletonID string    `json:"skeleton_id"`
	Frames     int       `json:"frames"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordingRepository stores recordings and their landmark frames.
type RecordingRepository struct {
	db *sql.DB
}

// Recordings returns the recording repository for this store.
func (s *Store) Recordings() *RecordingRepository {
	return &RecordingRepository{db: s.db}
}

// Create inserts a new, empty recording.
func (r *RecordingRepository) Create(rec *Recording) error {
	rec.CreatedAt = time.Now()
	rec.Frames = 0

	_, err := r.db.Exec(
		`INSERT INTO recordings (id, name, skeleton_id, frames, created_at) VALUES (?, ?, ?, 0, ?)`,
		rec.ID, rec.Name, rec.SkeletonID, rec.CreatedAt,
	)
	return err
}

// GetByID retrieves a recording by its ID.
func (r *RecordingRepository) GetByID(id string) (*Recording, error) {
	rec := &Recording{}
	err := r.db.QueryRow(
		`SELECT id, name, skeleton_id, frames, created_at FROM recordings WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Name, &rec.SkeletonID, &rec.Frames, &rec.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List retrieves all recordings, newest first.
func (r *RecordingRepository) List() ([]*Recording, error) {
	rows, err := r.db.Query(
		`SELECT id, name, skeleton_id, frames, created_at FROM recordings ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*Recording
	for rows.Next() {
		rec := &Recording{}
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.SkeletonID, &rec.Frames, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recs, nil
}

// AppendFrames adds frames to the end of a recording in a single transaction and updates
// its frame count. Empty frames are skipped.
func (r *RecordingRepository) AppendFrames(recordingID string, frames []*landmark.Frame) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	err = tx.QueryRow(`SELECT frames FROM recordings WHERE id = ?`, recordingID).Scan(&next)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO recording_frames (recording_id, sequence, timestamp_ms, data) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range frames {
		if f.Empty() {
			continue
		}
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(recordingID, next, f.Timestamp.Milliseconds(), string(data)); err != nil {
			return err
		}
		next++
	}

	if _, err := tx.Exec(`UPDATE recordings SET frames = ? WHERE id = ?`, next, recordingID); err != nil {
		return err
	}

	return tx.Commit()
}

// Frames retrieves the frames of a recording in capture order.
func (r *RecordingRepository) Frames(recordingID string) ([]*landmark.Frame, error) {
	if _, err := r.GetByID(recordingID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(
		`SELECT data FROM recording_frames WHERE recording_id = ? ORDER BY sequence`,
		recordingID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frames []*landmark.Frame
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		f := &landmark.Frame{}
		if err := json.Unmarshal([]byte(data), f); err != nil {
			return nil, err
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return frames, nil
}

// Delete removes a recording and its frames.
func (r *RecordingRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
