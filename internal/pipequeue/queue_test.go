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

package pipequeue

import (
	"testing"
	"time"

	"github.com/Nekohy/AutoRclone/internal/archiveset"
)

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue()

	done := make(chan *archiveset.ArchiveSet, 1)
	go func() {
		set, ok := q.Dequeue()
		if !ok {
			done <- nil
			return
		}
		done <- set
	}()

	time.Sleep(20 * time.Millisecond)
	q.Enqueue(&archiveset.ArchiveSet{BaseName: "Foo"})

	select {
	case set := <-done:
		if set == nil || set.BaseName != "Foo" {
			t.Errorf("expected to dequeue Foo, got %v", set)
		}
	case <-time.After(time.Second):
		t.Fatalf("Dequeue never returned after Enqueue")
	}
}

func TestCloseDrainsThenReturnsFalse(t *testing.T) {
	q := NewQueue()
	q.Enqueue(&archiveset.ArchiveSet{BaseName: "A"})
	q.Enqueue(&archiveset.ArchiveSet{BaseName: "B"})
	q.Close()

	var got []string
	for {
		set, ok := q.Dequeue()
		if !ok {
			break
		}
		got = append(got, set.BaseName)
	}

	if len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("expected to drain [A B] before Dequeue returned false, got %v", got)
	}
}

func TestEnqueueOnClosedQueueIsNoOp(t *testing.T) {
	q := NewQueue()
	q.Close()
	q.Enqueue(&archiveset.ArchiveSet{BaseName: "Late"})

	if _, ok := q.Dequeue(); ok {
		t.Errorf("expected Dequeue on a closed, empty queue to return false")
	}
}
