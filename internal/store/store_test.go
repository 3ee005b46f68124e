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

package store

import (
	"path/filepath"
	"testing"

	"github.com/Nekohy/AutoRclone/internal/archiveset"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("opening store failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUpsertIsIdempotent(t *testing.T) {
	st := openTestStore(t)

	set := &archiveset.ArchiveSet{
		BaseName:    "Foo",
		MemberPaths: []string{"remote:/a/Foo.part1.rar", "remote:/a/Foo.part2.rar"},
		TotalSize:   200,
	}

	if err := st.Upsert(set); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	if err := st.UpdateProgress("Foo", archiveset.StepDownloaded, archiveset.StatusIncomplete, ""); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	// Re-upserting the same set (as a second discovery pass would) must
	// not downgrade the progress already recorded.
	if err := st.Upsert(set); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	pending, err := st.LoadPending()
	if err != nil {
		t.Fatalf("LoadPending failed: %v", err)
	}
	for _, p := range pending {
		if p.BaseName == "Foo" && p.Step != archiveset.StepDownloaded {
			t.Errorf("re-upsert downgraded step to %d, expected %d", p.Step, archiveset.StepDownloaded)
		}
	}
}

func TestLoadPendingExcludesCompleted(t *testing.T) {
	st := openTestStore(t)

	incomplete := &archiveset.ArchiveSet{BaseName: "Incomplete", MemberPaths: []string{"r:/a.7z"}, TotalSize: 10}
	complete := &archiveset.ArchiveSet{BaseName: "Complete", MemberPaths: []string{"r:/b.7z"}, TotalSize: 10}

	if err := st.Upsert(incomplete); err != nil {
		t.Fatalf("Upsert incomplete failed: %v", err)
	}
	if err := st.Upsert(complete); err != nil {
		t.Fatalf("Upsert complete failed: %v", err)
	}
	if err := st.UpdateProgress("Complete", archiveset.StepUploaded, archiveset.StatusComplete, ""); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	pending, err := st.LoadPending()
	if err != nil {
		t.Fatalf("LoadPending failed: %v", err)
	}

	for _, p := range pending {
		if p.BaseName == "Complete" {
			t.Errorf("LoadPending returned a completed task: %s", p.BaseName)
		}
	}

	found := false
	for _, p := range pending {
		if p.BaseName == "Incomplete" {
			found = true
			if len(p.MemberPaths) != 1 || p.MemberPaths[0] != "r:/a.7z" {
				t.Errorf("unexpected member paths for Incomplete: %v", p.MemberPaths)
			}
		}
	}
	if !found {
		t.Errorf("LoadPending did not return the incomplete task")
	}
}

func TestUpdateProgressUnknownBaseNameIsNotAnError(t *testing.T) {
	st := openTestStore(t)

	// UPDATE against a basename with no matching row simply affects
	// zero rows; Store does not treat that as an error (matches a plain
	// database/sql UPDATE's semantics).
	if err := st.UpdateProgress("DoesNotExist", archiveset.StepDownloaded, archiveset.StatusIncomplete, ""); err != nil {
		t.Errorf("UpdateProgress on an unknown basename returned an error: %v", err)
	}
}
