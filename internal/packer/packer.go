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

// Package packer defines the archive-tool contract the decompress and
// repack stages depend on, and a concrete implementation that shells
// out to the 7z binary, mirroring the original fileprocess.py.
package packer

import "errors"

// Sentinel errors the TaskRunner classifies into ArchiveSet status
// codes (spec.md §4.6.2-3, §7). Wrap these with fmt.Errorf("...: %w")
// so errors.Is still finds them.
var (
	ErrNoRightPassword = errors.New("packer: no right password")
	ErrMissingSource   = errors.New("packer: source does not exist")
	ErrUnpackError     = errors.New("packer: unpack error")
	ErrPackError       = errors.New("packer: pack error")
)

// Packer is the external archive-tool collaborator (spec.md §6).
// Decompress tries each candidate password (plus an implicit empty
// password) until one succeeds. Compress produces one or more archive
// volumes under dstDir.
type Packer interface {
	Decompress(srcDir, dstDir string, passwords []string) error
	Compress(srcDir, dstDir, password string, level int, volumeSize string) error
}
