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

package archiveset

import (
	"reflect"
	"testing"
)

func TestGroupThreePartRar(t *testing.T) {
	records := []Record{
		{Path: "/movies/Foo.part1.rar", Name: "Foo.part1.rar", Size: 100},
		{Path: "/movies/Foo.part2.rar", Name: "Foo.part2.rar", Size: 100},
		{Path: "/movies/Foo.part3.rar", Name: "Foo.part3.rar", Size: 50},
		{Path: "/movies/readme.txt", Name: "readme.txt", Size: 1},
	}

	g := NewGrouper(GroupOptions{})
	sets, err := g.Group(records)
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}

	if len(sets) != 1 {
		t.Fatalf("expected 1 archive set, got %d", len(sets))
	}

	set, ok := sets["Foo"]
	if !ok {
		t.Fatalf("expected base name %q, got keys %v", "Foo", keysOf(sets))
	}
	if set.TotalSize != 250 {
		t.Errorf("expected total size 250, got %d", set.TotalSize)
	}
	if len(set.MemberPaths) != 3 {
		t.Errorf("expected 3 member paths, got %d", len(set.MemberPaths))
	}

	matched, dropped := g.Stats()
	if matched != 3 || dropped != 1 {
		t.Errorf("expected matched=3 dropped=1, got matched=%d dropped=%d", matched, dropped)
	}
}

func TestGroupIsIdempotent(t *testing.T) {
	records := []Record{
		{Path: "/a/Bar.7z", Name: "Bar.7z", Size: 10},
		{Path: "/a/Bar.7z.001", Name: "Bar.7z.001", Size: 20},
	}

	g := NewGrouper(GroupOptions{})
	first, err := g.Group(records)
	if err != nil {
		t.Fatalf("first Group failed: %v", err)
	}
	second, err := g.Group(records)
	if err != nil {
		t.Fatalf("second Group failed: %v", err)
	}

	if !reflect.DeepEqual(first["Bar"].MemberPaths, second["Bar"].MemberPaths) {
		t.Errorf("grouping the same listing twice produced different member paths: %v vs %v",
			first["Bar"].MemberPaths, second["Bar"].MemberPaths)
	}
}

func TestGroupDepthMode(t *testing.T) {
	records := []Record{
		{Path: "/source/SetA/disc1.zip", Name: "disc1.zip", Size: 10},
		{Path: "/source/SetA/disc2.zip", Name: "disc2.zip", Size: 10},
		{Path: "/source/SetB/disc1.zip", Name: "disc1.zip", Size: 5},
	}

	g := NewGrouper(GroupOptions{Depth: 2})
	sets, err := g.Group(records)
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}

	if _, ok := sets["SetA"]; !ok {
		t.Errorf("expected a set keyed by directory SetA, got keys %v", keysOf(sets))
	}
	if sets["SetA"].TotalSize != 20 {
		t.Errorf("expected SetA total size 20, got %d", sets["SetA"].TotalSize)
	}
	if _, ok := sets["SetB"]; !ok {
		t.Errorf("expected a set keyed by directory SetB, got keys %v", keysOf(sets))
	}
}

func TestGroupEmptyListIsError(t *testing.T) {
	g := NewGrouper(GroupOptions{})
	if _, err := g.Group(nil); err == nil {
		t.Errorf("expected an error grouping an empty listing, got nil")
	}
}

func TestGroupDropsNonArchiveFiles(t *testing.T) {
	records := []Record{
		{Path: "/a/notes.txt", Name: "notes.txt", Size: 5},
	}

	g := NewGrouper(GroupOptions{})
	sets, err := g.Group(records)
	if err != nil {
		t.Fatalf("Group failed: %v", err)
	}
	if len(sets) != 0 {
		t.Errorf("expected no archive sets, got %d", len(sets))
	}
}

func keysOf(m map[string]*ArchiveSet) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
