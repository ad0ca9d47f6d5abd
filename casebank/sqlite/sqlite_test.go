package sqlite

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscesim/oscesim/core"
)

func openFixture(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE cases (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL DEFAULT '',
			patient_instructions TEXT NOT NULL,
			management_plan TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE findings (
			case_id TEXT NOT NULL,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			PRIMARY KEY (case_id, category)
		)`,
		`CREATE TABLE approach_items (
			case_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			text TEXT NOT NULL,
			weight REAL NOT NULL DEFAULT 1.0,
			pitfall INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (case_id, seq)
		)`,
		`INSERT INTO cases VALUES
			('cardio-01', 'cardiovascular', 'You are a 54 year old with chest pain.', 'Aspirin, urgent ECG, cardiology referral.')`,
		`INSERT INTO findings VALUES
			('cardio-01', 'physical_exam', 'BP 150/95, HR 96 regular, afebrile.'),
			('cardio-01', 'investigations', 'Troponin mildly elevated.')`,
		`INSERT INTO approach_items VALUES
			('cardio-01', 1, 'Ask about onset and character of the chest pain', 1.0, 0),
			('cardio-01', 2, 'Check vital signs', 1.0, 0),
			('cardio-01', 3, 'Reassure without an ECG', 1.0, 1)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return NewStore(db)
}

func TestStore_GetCase(t *testing.T) {
	store := openFixture(t)

	c, err := store.GetCase("cardio-01")
	require.NoError(t, err)

	assert.Equal(t, "cardiovascular", c.Category)
	assert.Contains(t, c.PatientInstructions, "chest pain")
	assert.Equal(t, "BP 150/95, HR 96 regular, afebrile.", c.Findings[core.CategoryPhysicalExam])
	assert.Equal(t, "Troponin mildly elevated.", c.Findings[core.CategoryInvestigations])

	require.Len(t, c.Approach.Items, 2)
	assert.Equal(t, "Ask about onset and character of the chest pain", c.Approach.Items[0].Text)
	require.Len(t, c.Approach.Pitfalls, 1)
	assert.Equal(t, "Reassure without an ECG", c.Approach.Pitfalls[0].Text)
	assert.Equal(t, "Aspirin, urgent ECG, cardiology referral.", c.Approach.ManagementPlan)
}

func TestStore_GetCaseNotFound(t *testing.T) {
	store := openFixture(t)

	_, err := store.GetCase("missing")
	assert.True(t, errors.Is(err, core.ErrCaseNotFound))
}
