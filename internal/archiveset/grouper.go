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
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/golang/glog"
)

// Record is one entry from a remote file listing.
type Record struct {
	Path string
	Name string
	Size int64
}

// family is one archive-name pattern the Grouper tries, in table order.
// First match wins, exactly like the original filter_files patterns
// dict (Python dicts preserve insertion order, which the original
// implicitly relies on).
type family struct {
	name    string
	pattern *regexp.Regexp
}

var families = []family{
	{"rar", regexp.MustCompile(`(?i)^(?P<base>.+?)(?:\.part\d+)?\.rar$`)},
	{"7z", regexp.MustCompile(`(?i)^(?P<base>.+?)\.7z(?:\.\d{3})?$`)},
	{"zip", regexp.MustCompile(`(?i)^(?P<base>.+?)\.zip(?:\.\d{3})?$`)},
	{"sfx", regexp.MustCompile(`(?i)^(?P<base>.+?)\.(?:part\d+|\d{3})\.exe$`)},
}

// GroupOptions controls how records are classified.
type GroupOptions struct {
	// SourcePrefix is prepended to every normalized member path
	// ("<prefix>:<path>" remote addressing).
	SourcePrefix string
	// Depth, when > 0, keys sets by the directory component at
	// position depth-1 (0-based, counted from the start of the path
	// after any leading slash) of the record's path instead of by the
	// extracted base name, falling back to the file name when the path
	// has fewer components; the family regex match is still required
	// for a record to be considered.
	Depth int
}

// Grouper classifies a flat file listing into archive sets keyed by
// base name (or by directory, in depth mode).
type Grouper struct {
	opts GroupOptions

	lastMatched int
	lastDropped int
}

func NewGrouper(opts GroupOptions) *Grouper {
	return &Grouper{opts: opts}
}

// Group classifies records into base_name -> {member_paths, total_size}.
// Non-matching records are silently dropped. An empty input list is an
// error, mirroring the original's "No File List To Filter".
func (g *Grouper) Group(records []Record) (map[string]*ArchiveSet, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no files to filter")
	}

	sets := make(map[string]*ArchiveSet)
	paths := make(map[string]map[string]bool)

	matched := 0
	dropped := 0

	for _, rec := range records {
		base, famName, ok := g.classify(rec)
		if !ok {
			dropped++
			continue
		}
		matched++

		normalized := normalizePath(g.opts.SourcePrefix, rec.Path)

		set, exists := sets[base]
		if !exists {
			set = &ArchiveSet{BaseName: base}
			sets[base] = set
			paths[base] = make(map[string]bool)
		}

		if !paths[base][normalized] {
			paths[base][normalized] = true
			set.MemberPaths = append(set.MemberPaths, normalized)
			set.TotalSize += rec.Size
		}

		glog.V(3).Infof("grouped %s (family %s) under base %s", rec.Name, famName, base)
	}

	for _, set := range sets {
		sort.Strings(set.MemberPaths)
	}

	g.lastMatched = matched
	g.lastDropped = dropped

	glog.Infof("grouper: %d files matched into %d archive sets, %d files dropped", matched, len(sets), dropped)

	return sets, nil
}

// Stats reports the matched/dropped counts of the most recent Group
// call, for observability only (SPEC_FULL.md §4.1 addition).
func (g *Grouper) Stats() (matched, dropped int) {
	return g.lastMatched, g.lastDropped
}

// classify returns the base_name/key for a record and whether it
// belongs to a recognized archive family at all. In depth mode the key
// is the directory component, but the record must still match a family
// pattern to be considered (matching the original's two-stage
// depth-then-regex logic).
func (g *Grouper) classify(rec Record) (base string, famName string, ok bool) {
	candidate := rec.Name

	for _, fam := range families {
		m := fam.pattern.FindStringSubmatch(candidate)
		if m == nil {
			continue
		}
		extractedBase := m[fam.pattern.SubexpIndex("base")]

		if g.opts.Depth <= 0 {
			return extractedBase, fam.name, true
		}

		parts := strings.Split(strings.TrimPrefix(strings.ReplaceAll(rec.Path, "\\", "/"), "/"), "/")
		idx := g.opts.Depth - 1
		if idx < len(parts) {
			return parts[idx], fam.name, true
		}
		return rec.Name, fam.name, true
	}

	return "", "", false
}

// normalizePath forward-slash-normalizes an absolute remote path and
// prefixes it with the source remote, e.g. "mydrive:/a/b/c.7z".
func normalizePath(prefix, path string) string {
	p := strings.ReplaceAll(path, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if prefix == "" {
		return p
	}
	return prefix + ":" + p
}
