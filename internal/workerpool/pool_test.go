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

package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Nekohy/AutoRclone/internal/archiveset"
	"github.com/Nekohy/AutoRclone/internal/pipequeue"
)

func TestPoolProcessesEveryItem(t *testing.T) {
	q := pipequeue.NewQueue()
	var processed int64
	var wg sync.WaitGroup
	wg.Add(5)

	pool := New("test", q, 3, func(set *archiveset.ArchiveSet) {
		atomic.AddInt64(&processed, 1)
		wg.Done()
	})
	pool.Start()

	for i := 0; i < 5; i++ {
		q.Enqueue(&archiveset.ArchiveSet{BaseName: "x"})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("not all items were processed in time")
	}

	pool.DrainAndClose()

	if got := atomic.LoadInt64(&processed); got != 5 {
		t.Errorf("expected 5 items processed, got %d", got)
	}
}

func TestPoolActiveReflectsInFlightWork(t *testing.T) {
	q := pipequeue.NewQueue()
	release := make(chan struct{})

	pool := New("test", q, 1, func(set *archiveset.ArchiveSet) {
		<-release
	})
	pool.Start()
	q.Enqueue(&archiveset.ArchiveSet{BaseName: "x"})

	deadline := time.Now().Add(time.Second)
	for pool.Active() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if pool.Active() != 1 {
		t.Fatalf("expected 1 active worker, got %d", pool.Active())
	}

	close(release)
	q.Close()
	pool.DrainAndClose()

	if pool.Active() != 0 {
		t.Errorf("expected 0 active workers after drain, got %d", pool.Active())
	}
}
