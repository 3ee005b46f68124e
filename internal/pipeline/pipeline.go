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

// Package pipeline wires the Grouper, Store, DiskBudget, the four
// stage-boundary queues, and the four worker pools into the end-to-end
// rehydration run described in spec.md §4.7, generalized from the
// teacher's single archiveMaster/archiveWorker pass in archive/depot.go
// into four chained stages.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/Nekohy/AutoRclone/internal/archiveset"
	"github.com/Nekohy/AutoRclone/internal/config"
	"github.com/Nekohy/AutoRclone/internal/diskbudget"
	"github.com/Nekohy/AutoRclone/internal/packer"
	"github.com/Nekohy/AutoRclone/internal/pipequeue"
	"github.com/Nekohy/AutoRclone/internal/remotefs"
	"github.com/Nekohy/AutoRclone/internal/status"
	"github.com/Nekohy/AutoRclone/internal/store"
	"github.com/Nekohy/AutoRclone/internal/workerpool"
)

// Pipeline is the top-level run: it owns the Store, DiskBudget, stage
// queues and pools for one invocation of the rehydration process.
type Pipeline struct {
	cfg *config.Config

	store   *store.Store
	budget  *diskbudget.DiskBudget
	remote  remotefs.RemoteFS
	grouper *archiveset.Grouper
	queues  *pipequeue.StageQueue
	stats   *runStats
	runner  *TaskRunner
	metrics *status.Metrics

	pools [4]*workerpool.Pool
}

// SetMetrics attaches prometheus metrics to be updated on every
// heartbeat. Optional; a Pipeline with no metrics attached just skips
// the update.
func (p *Pipeline) SetMetrics(m *status.Metrics) {
	p.metrics = m
}

// New assembles a Pipeline from already-constructed collaborators. The
// caller (cmd/rehydrate) owns startup/teardown of the remote connection
// and the store file.
func New(cfg *config.Config, st *store.Store, budget *diskbudget.DiskBudget, remote remotefs.RemoteFS, pk packer.Packer) *Pipeline {
	queues := pipequeue.NewStageQueue()
	stats := &runStats{}

	runner := &TaskRunner{
		scratch:          newScratchLayout(cfg.General.ScratchDir),
		destRoot:         cfg.Remote.DestPath,
		store:            st,
		budget:           budget,
		remote:           remote,
		packer:           pk,
		queues:           queues,
		stats:            stats,
		passwords:        cfg.Archive.Passwords,
		repackPassword:   cfg.Archive.RepackPassword,
		compressionLevel: cfg.Archive.CompressionLevel,
		volumeSize:       cfg.Archive.VolumeSize,
	}

	sourceFs, _ := remotefs.SplitRemote(cfg.Remote.SourcePath)
	sourcePrefix := strings.TrimSuffix(sourceFs, ":")

	p := &Pipeline{
		cfg:     cfg,
		store:   st,
		budget:  budget,
		remote:  remote,
		grouper: archiveset.NewGrouper(archiveset.GroupOptions{SourcePrefix: sourcePrefix, Depth: cfg.Remote.GroupDepth}),
		queues:  queues,
		stats:   stats,
		runner:  runner,
	}

	p.pools = [4]*workerpool.Pool{
		workerpool.New("download", queues.ToDownload, cfg.Workers.Download, runner.runDownload),
		workerpool.New("decompress", queues.ToDecompress, cfg.Workers.Decompress, runner.runDecompress),
		workerpool.New("repack", queues.ToRepack, cfg.Workers.Repack, runner.runRepack),
		workerpool.New("upload", queues.ToUpload, cfg.Workers.Upload, runner.runUpload),
	}

	return p
}

// Discover lists the source remote, groups the listing into archive
// sets, and upserts every set into the Store (spec.md §4.7 step 1-2).
// It returns the number of sets discovered.
func (p *Pipeline) Discover() (int, error) {
	entries, err := p.remote.List(p.cfg.Remote.SourcePath, remotefs.ListOptions{Recurse: true, FilesOnly: true})
	if err != nil {
		return 0, fmt.Errorf("listing source remote: %v", err)
	}

	records := make([]archiveset.Record, len(entries))
	for i, e := range entries {
		records[i] = archiveset.Record{Path: e.Path, Name: e.Name, Size: e.Size}
	}

	sets, err := p.grouper.Group(records)
	if err != nil {
		return 0, fmt.Errorf("grouping source listing: %v", err)
	}

	for _, set := range sets {
		if err := p.store.Upsert(set); err != nil {
			return 0, fmt.Errorf("upserting %s: %v", set.BaseName, err)
		}
	}

	matched, dropped := p.grouper.Stats()
	glog.Infof("discover: %d files matched into %d archive sets (%d dropped)", matched, len(sets), dropped)

	return len(sets), nil
}

// Start loads every incomplete task from the Store, enqueues it to the
// download stage, and launches the four worker pools. It does not
// block; call Run to wait for completion.
func (p *Pipeline) Start() error {
	pending, err := p.store.LoadPending()
	if err != nil {
		return fmt.Errorf("loading pending tasks: %v", err)
	}

	p.stats.setTotal(len(pending))

	for _, pool := range p.pools {
		pool.Start()
	}

	for _, set := range pending {
		p.enqueueResumed(set)
	}

	return nil
}

// enqueueResumed hands a loaded task back to the download queue,
// regardless of the step it had reached before the process stopped
// (spec.md §8 scenario 6; the stage-level "re-run from its start on
// restart" non-goal applies to the whole pipeline here). Neither the
// DiskBudget's in-memory reservations nor the tmp/*/<base> scratch
// directories are guaranteed to survive a crash, so resuming at a
// downstream queue would run that stage's finally-block Release with no
// matching Reserve from this process, corrupting the budget accounting.
// Restarting at download re-reserves the full downstream peak cleanly.
func (p *Pipeline) enqueueResumed(set *archiveset.ArchiveSet) {
	p.queues.ToDownload.Enqueue(set)
}

// Run blocks until the pipeline has drained: every queue empty and
// every worker idle across two consecutive heartbeat observations
// (spec.md §4.7's termination latch, avoiding a race against a queue
// that is momentarily empty between one stage's enqueue and the next
// stage's dequeue).
func (p *Pipeline) Run() {
	heartbeat := time.Duration(p.cfg.General.Heartbeat) * time.Second
	if heartbeat <= 0 {
		heartbeat = 5 * time.Second
	}

	idleStreak := 0
	lastCompleted, lastErrors := 0, 0
	for {
		time.Sleep(heartbeat)

		snap := p.stats.snapshot()
		budgetSnap := p.budget.Snapshot()
		glog.Infof("heartbeat: %d/%d tasks done (%d completed, %d errors), budget %s",
			snap.TotalCompleted+snap.TotalErrors, snap.TotalTasks, snap.TotalCompleted, snap.TotalErrors,
			budgetSnap.String())

		if p.metrics != nil {
			p.metrics.Reserved.Set(float64(budgetSnap.Reserved))
			p.metrics.ActiveWorkers.WithLabelValues("download").Set(float64(p.pools[0].Active()))
			p.metrics.ActiveWorkers.WithLabelValues("decompress").Set(float64(p.pools[1].Active()))
			p.metrics.ActiveWorkers.WithLabelValues("repack").Set(float64(p.pools[2].Active()))
			p.metrics.ActiveWorkers.WithLabelValues("upload").Set(float64(p.pools[3].Active()))
			if d := snap.TotalCompleted - lastCompleted; d > 0 {
				p.metrics.TotalCompleted.Add(float64(d))
			}
			if d := snap.TotalErrors - lastErrors; d > 0 {
				p.metrics.TotalErrors.Add(float64(d))
			}
			lastCompleted, lastErrors = snap.TotalCompleted, snap.TotalErrors
		}

		if p.idle() {
			idleStreak++
		} else {
			idleStreak = 0
		}

		if idleStreak >= 2 {
			glog.Infof("pipeline idle for two consecutive heartbeats, shutting down")
			return
		}
	}
}

func (p *Pipeline) idle() bool {
	for _, q := range []*pipequeue.Queue{p.queues.ToDownload, p.queues.ToDecompress, p.queues.ToRepack, p.queues.ToUpload} {
		if q.Len() > 0 {
			return false
		}
	}
	for _, pool := range p.pools {
		if pool.Active() > 0 {
			return false
		}
	}
	return true
}

// Shutdown drains and stops every worker pool and wakes any blocked
// DiskBudget waiter, the cooperative shutdown sequence from spec.md §5.
func (p *Pipeline) Shutdown() {
	p.budget.Shutdown()
	for _, pool := range p.pools {
		pool.DrainAndClose()
	}
}

// StatusSnapshot is the JSON shape exposed on the status HTTP endpoint
// (SPEC_FULL.md Addition: StatusServer).
type StatusSnapshot struct {
	TotalBudget      int64 `json:"total_budget"`
	Reserved         int64 `json:"reserved"`
	ActiveDownload   int   `json:"active_download"`
	ActiveDecompress int   `json:"active_decompress"`
	ActiveRepack     int   `json:"active_repack"`
	ActiveUpload     int   `json:"active_upload"`
	TotalCompleted   int   `json:"total_completed"`
	TotalErrors      int   `json:"total_errors"`
	UnfinishedTasks  int   `json:"unfinished_tasks"`
	TotalTasks       int   `json:"total_tasks"`
}

// Status assembles the current StatusSnapshot, read by the status
// endpoint's /throttling handler.
func (p *Pipeline) Status() StatusSnapshot {
	budgetSnap := p.budget.Snapshot()
	statsSnap := p.stats.snapshot()

	return StatusSnapshot{
		TotalBudget:      budgetSnap.Total,
		Reserved:         budgetSnap.Reserved,
		ActiveDownload:   p.pools[0].Active(),
		ActiveDecompress: p.pools[1].Active(),
		ActiveRepack:     p.pools[2].Active(),
		ActiveUpload:     p.pools[3].Active(),
		TotalCompleted:   statsSnap.TotalCompleted,
		TotalErrors:      statsSnap.TotalErrors,
		UnfinishedTasks:  statsSnap.UnfinishedTasks,
		TotalTasks:       statsSnap.TotalTasks,
	}
}
