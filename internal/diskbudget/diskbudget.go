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

// Package diskbudget is the global admission controller over scratch
// disk usage: it blocks new downloads when reservations would exceed
// the safety ceiling, modeled on the teacher's per-root size accounting
// in archive/depot.go but generalized to a single level-triggered gate
// instead of a multi-root depot.
package diskbudget

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
)

// ErrTooLarge is returned when a single reservation request exceeds the
// usable budget outright; it never mutates reserved or the gate.
var ErrTooLarge = errors.New("diskbudget: reservation too large for budget")

// ErrShutdown is returned to any Reserve call that was blocked on the
// gate when Shutdown was invoked.
var ErrShutdown = errors.New("diskbudget: shut down")

const safetyFraction = 0.9

// DiskBudget tracks reserved scratch-disk bytes against a total budget
// and gates new downloads once reservations approach the ceiling.
type DiskBudget struct {
	mu   sync.Mutex
	cond *sync.Cond

	total      int64
	usable     int64
	reserved   int64
	gateClosed bool
	shutdown   bool
}

// New builds a DiskBudget with the given total byte ceiling. usable is
// fixed at 0.9 * total for the lifetime of the value.
func New(totalBudget int64) *DiskBudget {
	b := &DiskBudget{
		total:  totalBudget,
		usable: int64(float64(totalBudget) * safetyFraction),
	}
	b.cond = sync.NewCond(&b.mu)
	glog.Infof("disk budget: total=%s usable=%s", humanize.IBytes(uint64(b.total)), humanize.IBytes(uint64(b.usable)))
	return b
}

// Reserve blocks while the gate is closed, then commits bytes against
// the budget. A request whose size alone exceeds usable fails
// immediately with ErrTooLarge regardless of gate state and leaves
// reserved untouched. A commit that brings reserved to or past usable
// still succeeds but closes the gate for subsequent callers.
func (b *DiskBudget) Reserve(bytes int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bytes > b.usable {
		return ErrTooLarge
	}

	for b.gateClosed && !b.shutdown {
		b.cond.Wait()
	}
	if b.shutdown {
		return ErrShutdown
	}

	b.reserved += bytes
	if b.reserved >= b.usable {
		if !b.gateClosed {
			glog.V(2).Infof("disk budget: gate closing, reserved=%s usable=%s",
				humanize.IBytes(uint64(b.reserved)), humanize.IBytes(uint64(b.usable)))
		}
		b.gateClosed = true
	}
	return nil
}

// Release decrements reserved by bytes and reopens the gate (waking any
// blocked Reserve callers) once reserved drops strictly below usable.
func (b *DiskBudget) Release(bytes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reserved -= bytes
	if b.reserved < 0 {
		glog.Errorf("disk budget: release of %d brought reserved negative (%d), clamping to 0", bytes, b.reserved)
		b.reserved = 0
	}

	if b.gateClosed && b.reserved < b.usable {
		glog.V(2).Infof("disk budget: gate reopening, reserved=%s usable=%s",
			humanize.IBytes(uint64(b.reserved)), humanize.IBytes(uint64(b.usable)))
		b.gateClosed = false
		b.cond.Broadcast()
	}
}

// Shutdown wakes every blocked Reserve call with ErrShutdown. Used by
// cooperative pipeline shutdown (spec.md §5): closed + shutdown means
// drain and exit rather than wait forever.
func (b *DiskBudget) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.shutdown = true
	b.cond.Broadcast()
}

// Snapshot is the read-only projection exposed on the status endpoint.
type Snapshot struct {
	Total    int64
	Reserved int64
	Usable   int64
}

func (b *DiskBudget) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{Total: b.total, Reserved: b.reserved, Usable: b.usable}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("reserved=%s/%s (total %s)",
		humanize.IBytes(uint64(s.Reserved)), humanize.IBytes(uint64(s.Usable)), humanize.IBytes(uint64(s.Total)))
}
