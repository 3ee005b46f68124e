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

// Package remotefs defines the RemoteFS contract the pipeline's
// download/upload stages depend on, and a concrete implementation
// backed by rclone's rc HTTP control plane.
package remotefs

import "strings"

// Entry is one file record from a remote listing.
type Entry struct {
	Path string
	Name string
	Size int64
}

// ListOptions mirrors rclone's lsjson options relevant to this pipeline.
type ListOptions struct {
	Recurse    bool
	FilesOnly  bool
	NoMimeType bool
	NoModTime  bool
}

// RemoteFS is the external remote-storage collaborator the pipeline
// depends on (spec.md §6). Implementations must be safe for concurrent
// use by multiple stage workers.
type RemoteFS interface {
	List(remote string, opts ListOptions) ([]Entry, error)
	CopyFile(src, dst string) error
	Move(src, dst string, deleteEmptySrcDirs bool) error
	Purge(remote string) error
}

// SplitRemote isolates the "<prefix>:" portion of a path from its
// remainder. A bare local path (no colon) gets a leading slash added
// instead of a prefix, matching the original rclone.py convention for
// addressing either a configured remote or a local filesystem path.
func SplitRemote(path string) (fs, remote string) {
	idx := strings.Index(path, ":")
	if idx == -1 {
		if strings.HasPrefix(path, "/") {
			return "", path
		}
		return "", "/" + path
	}
	return path[:idx+1], path[idx+1:]
}
