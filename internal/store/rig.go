package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/minime/internal/retarget"
)

// Rig is a retargeting map calibrated for one skeleton.
type Rig struct {
	ID         string              `json:"id"`
	SkeletonID string              `json:"skeleton_id"`
	Definition retarget.Definition `json:"definition"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// RigRepository provides CRUD operations for rigs.
type RigRepository struct {
	db *sql.DB
}

// Rigs returns the rig repository for this store.
func (s *Store) Rigs() *RigRepository {
	return &RigRepository{db: s.db}
}

// Create inserts a new rig. The definition must build into a valid map.
func (r *RigRepository) Create(rig *Rig) error {
	data, err := encodeDefinition(rig)
	if err != nil {
		return err
	}

	now := time.Now()
	rig.CreatedAt = now
	rig.UpdatedAt = now

	_, err = r.db.Exec(
		`INSERT INTO rigs (id, skeleton_id, definition, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rig.ID, rig.SkeletonID, data, rig.CreatedAt, rig.UpdatedAt,
	)
	return err
}

// GetByID retrieves a rig by its ID.
func (r *RigRepository) GetByID(id string) (*Rig, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, skeleton_id, definition, created_at, updated_at FROM rigs WHERE id = ?`, id))
}

// GetBySkeleton retrieves the rig calibrated for a skeleton ID.
func (r *RigRepository) GetBySkeleton(skeletonID string) (*Rig, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, skeleton_id, definition, created_at, updated_at FROM rigs WHERE skeleton_id = ?`,
		skeletonID))
}

// List retrieves all rigs ordered by skeleton ID.
func (r *RigRepository) List() ([]*Rig, error) {
	rows, err := r.db.Query(
		`SELECT id, skeleton_id, definition, created_at, updated_at FROM rigs ORDER BY skeleton_id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rigs []*Rig
	for rows.Next() {
		rig, err := scanRig(rows)
		if err != nil {
			return nil, err
		}
		rigs = append(rigs, rig)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rigs, nil
}

// Update replaces the skeleton ID and definition of an existing rig.
func (r *RigRepository) Update(rig *Rig) error {
	data, err := encodeDefinition(rig)
	if err != nil {
		return err
	}
	rig.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE rigs SET skeleton_id = ?, definition = ?, updated_at = ? WHERE id = ?`,
		rig.SkeletonID, data, rig.UpdatedAt, rig.ID,
	)
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

// Delete removes a rig by its ID.
func (r *RigRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM rigs WHERE id = ?`, id)
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

// LoadInto builds every stored rig and registers it in t, replacing bundled maps with the
// same skeleton ID. It returns the number of maps registered.
func (r *RigRepository) LoadInto(t *retarget.Table) (int, error) {
	rigs, err := r.List()
	if err != nil {
		return 0, err
	}
	for _, rig := range rigs {
		m, err := rig.Definition.Build()
		if err != nil {
			return 0, fmt.Errorf("rig %s: %w", rig.ID, err)
		}
		t.Register(m)
	}
	return len(rigs), nil
}

func (r *RigRepository) scanOne(row *sql.Row) (*Rig, error) {
	rig, err := scanRig(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rig, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRig(s scanner) (*Rig, error) {
	rig := &Rig{}
	var data string
	if err := s.Scan(&rig.ID, &rig.SkeletonID, &data, &rig.CreatedAt, &rig.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &rig.Definition); err != nil {
		return nil, fmt.Errorf("decode rig %s: %w", rig.ID, err)
	}
	return rig, nil
}

// encodeDefinition validates the rig and returns its JSON definition. The definition's
// skeleton always follows the rig's skeleton ID.
func encodeDefinition(rig *Rig) (string, error) {
	if rig.SkeletonID == "" {
		rig.SkeletonID = rig.Definition.Skeleton
	}
	rig.Definition.Skeleton = rig.SkeletonID
	if _, err := rig.Definition.Build(); err != nil {
		return "", err
	}
	data, err := json.Marshal(rig.Definition)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
