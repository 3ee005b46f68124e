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

// Package pipequeue provides the four FIFO hand-off queues between
// pipeline stages. It generalizes the teacher's single buffered
// "inwork" channel (worker/worker.go) into an unbounded, shutdown-aware
// queue used four times over, one per stage boundary.
package pipequeue

import (
	"sync"

	"github.com/Nekohy/AutoRclone/internal/archiveset"
)

// Queue is an unbounded FIFO of ArchiveSets. Enqueue never blocks;
// Dequeue blocks until an item is available or the queue is closed.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*archiveset.ArchiveSet
	closed bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends set to the tail of the queue and wakes one waiting
// Dequeue call. It is a no-op on a closed queue.
func (q *Queue) Enqueue(set *archiveset.ArchiveSet) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, set)
	q.cond.Signal()
}

// Dequeue blocks until an item is available or the queue is closed and
// drained, in which case it returns (nil, false).
func (q *Queue) Dequeue() (*archiveset.ArchiveSet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}

	set := q.items[0]
	q.items = q.items[1:]
	return set, true
}

// Close marks the queue closed and wakes every blocked Dequeue; items
// already enqueued are still drained by Dequeue before it starts
// returning false.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len reports the number of items currently queued (not counting any
// in flight inside a worker).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// StageQueue bundles the four stage-boundary queues the pipeline hands
// ArchiveSets through: discover -> download -> decompress -> repack ->
// upload -> terminal.
type StageQueue struct {
	ToDownload   *Queue
	ToDecompress *Queue
	ToRepack     *Queue
	ToUpload     *Queue
}

func NewStageQueue() *StageQueue {
	return &StageQueue{
		ToDownload:   NewQueue(),
		ToDecompress: NewQueue(),
		ToRepack:     NewQueue(),
		ToUpload:     NewQueue(),
	}
}
