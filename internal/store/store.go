// Copyright (c) 2013 Uwe Hoffmann. All rights reserved.

/*
Redistribution and use in source and binary forms, with or without
modification, are permitted provided that the following conditions are
met:

   * Redistributions of source code must retain the above copyright
notice, this list of conditions and the following disclaimer.
   * Redistributions in binary form must reproduce the above
copyright notice, this list of conditions and the following disclaimer
in the documentation and/or other materials provided with the
distribution.
   * Neither the name of Google Inc. nor the names of its
contributors may be used to endorse or promote products derived from
this software without specific prior written permission.

THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS
"AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT
LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR
A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT
OWNER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT
LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
(INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.
*/

// Package store is the durable task registry: it persists each
// ArchiveSet's identity, total size, member paths, and per-task
// progress (step, status, log) so interrupted runs can resume.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/golang/glog"
	_ "modernc.org/sqlite"

	"github.com/Nekohy/AutoRclone/internal/archiveset"
)

const schema = `
CREATE TABLE IF NOT EXISTS base_files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	basename TEXT UNIQUE NOT NULL,
	total_size INTEGER NOT NULL,
	status INTEGER NOT NULL DEFAULT 0,
	step INTEGER NOT NULL DEFAULT 0,
	log TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS paths (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	base_file_id INTEGER NOT NULL REFERENCES base_files(id),
	path TEXT NOT NULL,
	UNIQUE(base_file_id, path)
);
`

// Store is the durable base_name -> ArchiveSet mapping described in
// spec.md §4.2/§6. database/sql's pool already serializes individual
// statements against sqlite's single-writer file, but both writers
// (Upsert and UpdateProgress) still take an explicit mutex so that
// Upsert's insert-then-lookup steps stay atomic with respect to other
// writers, the way the teacher's RomDB treats its writers in db/db.go.
type Store struct {
	db       *sql.DB
	writerMu sync.Mutex
}

// Open creates the schema (if absent) and returns a ready Store backed
// by a sqlite file at path.
func Open(path string) (*Store, error) {
	glog.Infof("opening store at %s", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %v", err)
	}

	// sqlite only tolerates one writer at a time; since Store itself
	// also serializes writers with writerMu, a single connection keeps
	// reads and writes from racing each other across goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %v", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts a new row for set.BaseName, recording its member paths
// uniquely. If the base name already exists, Upsert leaves the existing
// row's step/status/log untouched — progress is never downgraded.
func (s *Store) Upsert(set *archiveset.ArchiveSet) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO base_files(basename, total_size) VALUES (?, ?)
		ON CONFLICT(basename) DO NOTHING`, set.BaseName, set.TotalSize)
	if err != nil {
		return fmt.Errorf("upserting %s: %v", set.BaseName, err)
	}

	var baseID int64
	n, _ := res.RowsAffected()
	if n > 0 {
		baseID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("resolving inserted id for %s: %v", set.BaseName, err)
		}
	} else {
		row := tx.QueryRow(`SELECT id FROM base_files WHERE basename = ?`, set.BaseName)
		if err := row.Scan(&baseID); err != nil {
			// A row we just failed to insert (conflict) must exist;
			// failing to resolve it here is a programming error.
			return fmt.Errorf("resolving existing id for %s: %v", set.BaseName, err)
		}
	}

	for _, p := range set.MemberPaths {
		if _, err := tx.Exec(`INSERT INTO paths(base_file_id, path) VALUES (?, ?)
			ON CONFLICT(base_file_id, path) DO NOTHING`, baseID, p); err != nil {
			return fmt.Errorf("recording path %s for %s: %v", p, set.BaseName, err)
		}
	}

	return tx.Commit()
}

// UpdateProgress overwrites the mutable (step, status, log) fields for
// base_name atomically. Safe to call concurrently from any stage
// worker — at most one writer touches the row at a time (enforced by
// writerMu), and every write is wrapped in its own transaction.
func (s *Store) UpdateProgress(baseName string, step archiveset.Step, status archiveset.Status, logMsg string) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	_, err := s.db.Exec(`UPDATE base_files SET step = ?, status = ?, log = ?, updated_at = datetime('now')
		WHERE basename = ?`, int(step), int(status), logMsg, baseName)
	if err != nil {
		return fmt.Errorf("updating progress for %s: %v", baseName, err)
	}
	return nil
}

// LoadPending returns every archive set with status=0 (incomplete),
// together with its member paths and total size.
func (s *Store) LoadPending() ([]*archiveset.ArchiveSet, error) {
	rows, err := s.db.Query(`SELECT id, basename, total_size, step, status, log
		FROM base_files WHERE status = 0`)
	if err != nil {
		return nil, fmt.Errorf("loading pending sets: %v", err)
	}
	defer rows.Close()

	type pending struct {
		id  int64
		set *archiveset.ArchiveSet
	}
	var list []pending

	for rows.Next() {
		p := pending{set: new(archiveset.ArchiveSet)}
		var step, status int
		if err := rows.Scan(&p.id, &p.set.BaseName, &p.set.TotalSize, &step, &status, &p.set.LastLog); err != nil {
			return nil, fmt.Errorf("scanning pending set: %v", err)
		}
		p.set.Step = archiveset.Step(step)
		p.set.Status = archiveset.Status(status)
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sets := make([]*archiveset.ArchiveSet, 0, len(list))
	for _, p := range list {
		pathRows, err := s.db.Query(`SELECT path FROM paths WHERE base_file_id = ? ORDER BY path`, p.id)
		if err != nil {
			return nil, fmt.Errorf("loading paths for %s: %v", p.set.BaseName, err)
		}
		for pathRows.Next() {
			var path string
			if err := pathRows.Scan(&path); err != nil {
				pathRows.Close()
				return nil, err
			}
			p.set.MemberPaths = append(p.set.MemberPaths, path)
		}
		pathRows.Close()

		sets = append(sets, p.set)
	}

	glog.Infof("loaded %d pending tasks from store", len(sets))

	return sets, nil
}
