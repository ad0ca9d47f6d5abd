// Package sqlite implements core.CaseStore over an authored case database.
// The schema mirrors how case material is curated: one row per case plus
// per-category findings and ordered reference approach items.
//
//	CREATE TABLE cases (
//	    id                   TEXT PRIMARY KEY,
//	    category             TEXT NOT NULL DEFAULT '',
//	    patient_instructions TEXT NOT NULL,
//	    management_plan      TEXT NOT NULL DEFAULT ''
//	);
//	CREATE TABLE findings (
//	    case_id  TEXT NOT NULL REFERENCES cases(id),
//	    category TEXT NOT NULL,
//	    content  TEXT NOT NULL,
//	    PRIMARY KEY (case_id, category)
//	);
//	CREATE TABLE approach_items (
//	    case_id TEXT NOT NULL REFERENCES cases(id),
//	    seq     INTEGER NOT NULL,
//	    text    TEXT NOT NULL,
//	    weight  REAL NOT NULL DEFAULT 1.0,
//	    pitfall INTEGER NOT NULL DEFAULT 0,
//	    PRIMARY KEY (case_id, seq)
//	);
//
// The store is read-only; authoring happens outside this system.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/oscesim/oscesim/core"
)

// Store reads exam cases from a sqlite database file.
type Store struct {
	db *sql.DB
}

var _ core.CaseStore = (*Store)(nil)

// Open opens the case database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open case database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// GetCase implements core.CaseStore, assembling the case from its three
// tables.
func (s *Store) GetCase(id string) (*core.Case, error) {
	c := &core.Case{ID: id, Findings: make(map[core.FindingCategory]string)}

	row := s.db.QueryRow(
		`SELECT category, patient_instructions, management_plan FROM cases WHERE id = ?`, id)
	if err := row.Scan(&c.Category, &c.PatientInstructions, &c.Approach.ManagementPlan); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", core.ErrCaseNotFound, id)
		}
		return nil, fmt.Errorf("load case %s: %w", id, err)
	}

	if err := s.loadFindings(c); err != nil {
		return nil, err
	}
	if err := s.loadApproach(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) loadFindings(c *core.Case) error {
	rows, err := s.db.Query(`SELECT category, content FROM findings WHERE case_id = ?`, c.ID)
	if err != nil {
		return fmt.Errorf("load findings for %s: %w", c.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var category, content string
		if err := rows.Scan(&category, &content); err != nil {
			return fmt.Errorf("scan finding for %s: %w", c.ID, err)
		}
		c.Findings[core.FindingCategory(category)] = content
	}
	return rows.Err()
}

func (s *Store) loadApproach(c *core.Case) error {
	rows, err := s.db.Query(
		`SELECT seq, text, weight, pitfall FROM approach_items WHERE case_id = ? ORDER BY seq`, c.ID)
	if err != nil {
		return fmt.Errorf("load approach for %s: %w", c.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq     int
			item    core.ReferenceItem
			pitfall bool
		)
		if err := rows.Scan(&seq, &item.Text, &item.Weight, &pitfall); err != nil {
			return fmt.Errorf("scan approach item for %s: %w", c.ID, err)
		}
		item.ID = fmt.Sprintf("%s/%d", c.ID, seq)
		if pitfall {
			c.Approach.Pitfalls = append(c.Approach.Pitfalls, item)
		} else {
			c.Approach.Items = append(c.Approach.Items, item)
		}
	}
	return rows.Err()
}
