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

package pipeline

import "sync"

// runStats is the process-lifetime aggregate counter set from spec.md
// §4.7/§8 (total_completed, total_errors, unfinished_tasks,
// total_tasks). It is guarded by its own mutex, separate from
// DiskBudget's, per the locking discipline in spec.md §5.
type runStats struct {
	mu sync.Mutex

	totalTasks      int
	totalCompleted  int
	totalErrors     int
}

func (s *runStats) setTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalTasks = n
}

func (s *runStats) addCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalCompleted++
}

func (s *runStats) addError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalErrors++
}

type statsSnapshot struct {
	TotalTasks      int
	TotalCompleted  int
	TotalErrors     int
	UnfinishedTasks int
}

func (s *runStats) snapshot() statsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return statsSnapshot{
		TotalTasks:      s.totalTasks,
		TotalCompleted:  s.totalCompleted,
		TotalErrors:     s.totalErrors,
		UnfinishedTasks: s.totalTasks - s.totalCompleted - s.totalErrors,
	}
}
