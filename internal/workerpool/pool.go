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

// Package workerpool is a fixed-size concurrent pool that pulls work
// off a pipequeue.Queue and runs a stage function per item, generalized
// from the teacher's runSlave/slave loop in worker/worker.go (there
// tied to a single fixed Worker interface; here parameterized by any
// per-stage function).
package workerpool

import (
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/Nekohy/AutoRclone/internal/archiveset"
	"github.com/Nekohy/AutoRclone/internal/pipequeue"
)

// StageFunc processes one ArchiveSet through a single pipeline stage.
// It never returns an error directly — failures are classified and
// recorded by the caller (TaskRunner) before the queue hand-off
// decision is made, so the pool itself only needs to know when a
// worker is busy vs. idle.
type StageFunc func(set *archiveset.ArchiveSet)

// Pool is a bounded group of workers serving one stage's queue.
type Pool struct {
	name       string
	queue      *pipequeue.Queue
	numWorkers int
	fn         StageFunc

	active int64
	wg     sync.WaitGroup
}

func New(name string, queue *pipequeue.Queue, numWorkers int, fn StageFunc) *Pool {
	return &Pool{
		name:       name,
		queue:      queue,
		numWorkers: numWorkers,
		fn:         fn,
	}
}

// Start launches numWorkers goroutines, each looping dequeue -> run ->
// loop. A worker never terminates on a task error; it only stops when
// its queue is closed and drained.
func (p *Pool) Start() {
	glog.Infof("starting %d workers for stage %s", p.numWorkers, p.name)
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
}

func (p *Pool) runWorker(idx int) {
	defer p.wg.Done()

	for {
		set, ok := p.queue.Dequeue()
		if !ok {
			glog.V(2).Infof("stage %s worker %d exiting, queue closed", p.name, idx)
			return
		}

		atomic.AddInt64(&p.active, 1)
		p.fn(set)
		atomic.AddInt64(&p.active, -1)
	}
}

// Active returns the number of workers currently executing a task.
func (p *Pool) Active() int {
	return int(atomic.LoadInt64(&p.active))
}

// DrainAndClose closes the pool's queue and waits for every worker to
// finish its current task and exit.
func (p *Pool) DrainAndClose() {
	p.queue.Close()
	p.wg.Wait()
	glog.Infof("stage %s drained", p.name)
}
