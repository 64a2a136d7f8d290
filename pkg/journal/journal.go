// Package journal keeps a local sqlite log of staging lifecycle actions,
// so that a repository id stays discoverable after a failed workflow.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/xerrors"
	"k8s.io/utils/clock"

	_ "modernc.org/sqlite"
)

const dbFileName = "journal.db"

// Entry is a single recorded action.
type Entry struct {
	ID        int64     `json:"id"`
	RepoID    string    `json:"repoId"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Journal struct {
	client *sql.DB
	dir    string
	clock  clock.Clock
}

type Option func(*Journal)

// WithClock overrides the clock used for timestamps.
func WithClock(c clock.Clock) Option {
	return func(j *Journal) {
		j.clock = c
	}
}

// DefaultDir returns the journal directory under the user cache directory.
func DefaultDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "repositorytools")
}

func Path(dir string) string {
	return filepath.Join(dir, dbFileName)
}

// New opens the journal in dir, creating the directory and the schema when needed.
func New(dir string, opts ...Option) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, xerrors.Errorf("failed to mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", Path(dir))
	if err != nil {
		return nil, xerrors.Errorf("can't open journal: %w", err)
	}

	j := &Journal{
		client: db,
		dir:    dir,
		clock:  clock.RealClock{},
	}
	for _, opt := range opts {
		opt(j)
	}

	if err = j.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) init() error {
	if _, err := j.client.Exec(`CREATE TABLE IF NOT EXISTS events(id INTEGER PRIMARY KEY AUTOINCREMENT, repo_id TEXT NOT NULL, action TEXT NOT NULL, detail TEXT, created_at INTEGER NOT NULL)`); err != nil {
		return xerrors.Errorf("unable to create 'events' table: %w", err)
	}
	if _, err := j.client.Exec("CREATE INDEX IF NOT EXISTS events_repo_id_idx ON events(repo_id)"); err != nil {
		return xerrors.Errorf("unable to create 'events_repo_id_idx' index: %w", err)
	}
	return nil
}

func (j *Journal) Dir() string {
	return j.dir
}

func (j *Journal) Close() error {
	return j.client.Close()
}

// Record appends an action performed on a staging repository.
func (j *Journal) Record(ctx context.Context, repoID, action, detail string) error {
	_, err := j.client.ExecContext(ctx, `INSERT INTO events(repo_id, action, detail, created_at) VALUES (?, ?, ?, ?)`,
		repoID, action, detail, j.clock.Now().UTC().UnixNano())
	if err != nil {
		return xerrors.Errorf("unable to insert to 'events' table: %w", err)
	}
	return nil
}

// List returns recorded actions in insertion order, all of them when repoID is empty.
func (j *Journal) List(ctx context.Context, repoID string) ([]Entry, error) {
	query := `SELECT id, repo_id, action, detail, created_at FROM events`
	var args []any
	if repoID != "" {
		query += ` WHERE repo_id = ?`
		args = append(args, repoID)
	}
	query += ` ORDER BY id`

	rows, err := j.client.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Errorf("select events error: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var detail sql.NullString
		var createdAt int64
		if err = rows.Scan(&e.ID, &e.RepoID, &e.Action, &detail, &createdAt); err != nil {
			return nil, xerrors.Errorf("scan row error: %w", err)
		}
		e.Detail = detail.String
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, xerrors.Errorf("rows error: %w", err)
	}
	return entries, nil
}
