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

package diskbudget

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestReserveTooLargeDoesNotMutate(t *testing.T) {
	b := New(1000)

	before := b.Snapshot().Reserved

	err := b.Reserve(int64(float64(1000)*safetyFraction) + 1)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}

	after := b.Snapshot().Reserved
	if after != before {
		t.Errorf("reservation rejected as too-large still mutated reserved: %d -> %d", before, after)
	}
}

func TestReserveExactUsableSucceeds(t *testing.T) {
	b := New(1000)
	usable := int64(float64(1000) * safetyFraction)

	if err := b.Reserve(usable); err != nil {
		t.Fatalf("reserving exactly the usable ceiling failed: %v", err)
	}
}

func TestGateClosesAndBlocks(t *testing.T) {
	b := New(1000)
	usable := int64(float64(1000) * safetyFraction)

	if err := b.Reserve(usable); err != nil {
		t.Fatalf("initial reserve failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- b.Reserve(1)
	}()

	select {
	case <-done:
		t.Fatalf("Reserve should have blocked on a closed gate")
	case <-time.After(50 * time.Millisecond):
	}

	b.Release(usable)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("blocked Reserve failed after Release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked Reserve never woke after Release")
	}
}

func TestShutdownWakesBlockedReserve(t *testing.T) {
	b := New(1000)
	usable := int64(float64(1000) * safetyFraction)

	if err := b.Reserve(usable); err != nil {
		t.Fatalf("initial reserve failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- b.Reserve(1)
	}()

	time.Sleep(20 * time.Millisecond)
	b.Shutdown()

	select {
	case err := <-done:
		if !errors.Is(err, ErrShutdown) {
			t.Errorf("expected ErrShutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked Reserve never woke after Shutdown")
	}
}

func TestConcurrentReserveReleaseSettlesToZero(t *testing.T) {
	b := New(10000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Reserve(100); err == nil {
				time.Sleep(time.Millisecond)
				b.Release(100)
			}
		}()
	}
	wg.Wait()

	if r := b.Snapshot().Reserved; r != 0 {
		t.Errorf("expected reserved to settle back to 0, got %d", r)
	}
}
