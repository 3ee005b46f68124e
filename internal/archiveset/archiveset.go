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

// Package archiveset defines the ArchiveSet work unit and the Grouper
// that classifies a flat remote file listing into archive sets.
package archiveset

// Step is the pipeline stage an ArchiveSet has reached.
type Step int

const (
	StepPending      Step = 0
	StepDownloaded   Step = 1
	StepDecompressed Step = 2
	StepRepacked     Step = 3
	StepUploaded     Step = 4
)

// Status is the terminal or in-flight classification of an ArchiveSet.
type Status int

const (
	StatusIncomplete  Status = 0
	StatusComplete    Status = 1
	StatusBadPassword Status = 2
	StatusKnownError  Status = 3
	StatusUnknownErr  Status = 4
)

// ArchiveSet is the unit of work the pipeline moves through its four
// stages. BaseName is the unique key used in Store and in every scratch
// path derived for the set.
type ArchiveSet struct {
	BaseName    string
	MemberPaths []string
	TotalSize   int64
	Step        Step
	Status      Status
	LastLog     string
}
