package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceKind says where an installed plugin was built from.
type SourceKind string

const (
	SourceGit SourceKind = "git"
	SourceDir SourceKind = "dir"
)

// Install describes one plugin library placed in the plugins directory.
type Install struct {
	ID          string
	Name        string
	Version     string
	Protocol    uint32
	SourceKind  SourceKind
	Source      string
	Revision    string
	LibraryPath string
	InstalledAt time.Time
	UpdatedAt   time.Time
}

// Event is one entry of a plugin's install history.
type Event struct {
	Name   string
	Action string
	Detail string
	At     time.Time
}

// Install history actions.
const (
	ActionInstalled = "installed"
	ActionUpdated   = "updated"
	ActionRemoved   = "removed"
)

// ErrNotFound is returned when no install record matches.
var ErrNotFound = errors.New("install record not found")

// InstallStore persists install records.
type InstallStore struct {
	db  *DB
	now func() time.Time
}

func NewInstallStore(db *DB) *InstallStore {
	return &InstallStore{db: db, now: time.Now}
}

// Upsert records in by name. Reinstalling a name keeps its ID and
// InstalledAt and logs an "updated" event; a first install logs "installed".
// The stored record is returned.
func (s *InstallStore) Upsert(in Install) (Install, error) {
	if in.Name == "" {
		return Install{}, errors.New("install record needs a name")
	}
	now := s.now().UTC().Truncate(time.Second)

	tx, err := s.db.sql.Begin()
	if err != nil {
		return Install{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	prev, err := scanInstall(tx.QueryRow(selectInstall+" WHERE name = ?", in.Name))
	action := ActionUpdated
	switch {
	case errors.Is(err, ErrNotFound):
		in.ID = uuid.NewString()
		in.InstalledAt = now
		action = ActionInstalled
	case err != nil:
		return Install{}, err
	default:
		in.ID = prev.ID
		in.InstalledAt = prev.InstalledAt
	}
	in.UpdatedAt = now

	_, err = tx.Exec(`
		INSERT INTO installs (id, name, version, protocol, source_kind, source, revision, library_path, installed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			protocol = excluded.protocol,
			source_kind = excluded.source_kind,
			source = excluded.source,
			revision = excluded.revision,
			library_path = excluded.library_path,
			updated_at = excluded.updated_at`,
		in.ID, in.Name, in.Version, in.Protocol, string(in.SourceKind), in.Source, in.Revision,
		in.LibraryPath, in.InstalledAt.Format(time.RFC3339), in.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return Install{}, fmt.Errorf("saving install %s: %w", in.Name, err)
	}
	if err := logEvent(tx, in.Name, action, in.Source, now); err != nil {
		return Install{}, err
	}
	if err := tx.Commit(); err != nil {
		return Install{}, fmt.Errorf("commit install %s: %w", in.Name, err)
	}

	s.db.log.Debug().Str("plugin", in.Name).Str("action", action).Msg("install recorded")
	return in, nil
}

// Get returns the record for name or ErrNotFound.
func (s *InstallStore) Get(name string) (Install, error) {
	return scanInstall(s.db.sql.QueryRow(selectInstall+" WHERE name = ?", name))
}

// List returns all records ordered by name.
func (s *InstallStore) List() ([]Install, error) {
	rows, err := s.db.sql.Query(selectInstall + " ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("listing installs: %w", err)
	}
	defer rows.Close()

	var out []Install
	for rows.Next() {
		in, err := scanInstall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Delete removes the record for name and logs a "removed" event with
// reason. Deleting an unknown name returns ErrNotFound.
func (s *InstallStore) Delete(name, reason string) error {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM installs WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("deleting install %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := logEvent(tx, name, ActionRemoved, reason, s.now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteByPath removes every record whose library lives at path and returns
// the names removed.
func (s *InstallStore) DeleteByPath(path, reason string) ([]string, error) {
	rows, err := s.db.sql.Query("SELECT name FROM installs WHERE library_path = ? ORDER BY name", path)
	if err != nil {
		return nil, fmt.Errorf("finding installs at %s: %w", path, err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, n := range names {
		if err := s.Delete(n, reason); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// History returns the events for name, oldest first.
func (s *InstallStore) History(name string) ([]Event, error) {
	rows, err := s.db.sql.Query(
		"SELECT name, action, detail, at FROM install_events WHERE name = ? ORDER BY id", name)
	if err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", name, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var at string
		if err := rows.Scan(&e.Name, &e.Action, &e.Detail, &at); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

const selectInstall = `SELECT id, name, version, protocol, source_kind, source, revision, library_path, installed_at, updated_at FROM installs`

type scanner interface {
	Scan(dest ...any) error
}

func scanInstall(row scanner) (Install, error) {
	var in Install
	var kind, installedAt, updatedAt string
	err := row.Scan(&in.ID, &in.Name, &in.Version, &in.Protocol, &kind, &in.Source,
		&in.Revision, &in.LibraryPath, &installedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Install{}, ErrNotFound
	}
	if err != nil {
		return Install{}, fmt.Errorf("reading install: %w", err)
	}
	in.SourceKind = SourceKind(kind)
	in.InstalledAt, _ = time.Parse(time.RFC3339, installedAt)
	in.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return in, nil
}

func logEvent(tx *sql.Tx, name, action, detail string, at time.Time) error {
	_, err := tx.Exec("INSERT INTO install_events (name, action, detail, at) VALUES (?, ?, ?, ?)",
		name, action, detail, at.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("logging %s event for %s: %w", action, name, err)
	}
	return nil
}
