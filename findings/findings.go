// Package findings keeps a log of every lesion measured in the viewer, so a
// case can be reviewed later with the thresholds and volumes that were tried.
package findings

import (
	"context"
	"fmt"
	"time"

	"github.com/carbocation/pfx"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS findings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	case_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	min_hu REAL NOT NULL,
	max_hu REAL NOT NULL,
	top_slice INTEGER NOT NULL,
	bottom_slice INTEGER NOT NULL,
	voxels INTEGER NOT NULL,
	volume_mm3 REAL NOT NULL,
	impression TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS findings_case ON findings (case_id, created_at);
`

// Finding is one segmentation outcome. CreatedAt is stored as Unix seconds.
type Finding struct {
	ID          int64   `db:"id" json:"id"`
	CaseID      string  `db:"case_id" json:"case"`
	SessionID   string  `db:"session_id" json:"session"`
	MinHU       float64 `db:"min_hu" json:"min_hu"`
	MaxHU       float64 `db:"max_hu" json:"max_hu"`
	TopSlice    int     `db:"top_slice" json:"top_slice"`
	BottomSlice int     `db:"bottom_slice" json:"bottom_slice"`
	Voxels      int     `db:"voxels" json:"voxels"`
	VolumeMM3   float64 `db:"volume_mm3" json:"volume_mm3"`
	Impression  string  `db:"impression" json:"impression"`
	CreatedAt   int64   `db:"created_at" json:"created_at"`
}

func (f Finding) Time() time.Time {
	return time.Unix(f.CreatedAt, 0)
}

type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open creates or opens the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	// One writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pfx.Err(fmt.Errorf("initialize schema: %w", err))
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts f, stamping it with the current time, and returns its id.
func (s *Store) Record(ctx context.Context, f Finding) (int64, error) {
	f.CreatedAt = s.now().Unix()

	res, err := s.db.NamedExecContext(ctx, `INSERT INTO findings
	(case_id, session_id, min_hu, max_hu, top_slice, bottom_slice, voxels, volume_mm3, impression, created_at)
	VALUES
	(:case_id, :session_id, :min_hu, :max_hu, :top_slice, :bottom_slice, :voxels, :volume_mm3, :impression, :created_at)`, f)
	if err != nil {
		return 0, pfx.Err(err)
	}

	return res.LastInsertId()
}

// ListByCase returns the findings for a case, oldest first.
func (s *Store) ListByCase(ctx context.Context, caseID string) ([]Finding, error) {
	out := []Finding{}
	if err := s.db.SelectContext(ctx, &out, `SELECT * FROM findings WHERE case_id = ? ORDER BY created_at, id`, caseID); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}
