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

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"

	"github.com/Nekohy/AutoRclone/internal/archiveset"
	"github.com/Nekohy/AutoRclone/internal/diskbudget"
	"github.com/Nekohy/AutoRclone/internal/packer"
	"github.com/Nekohy/AutoRclone/internal/pipequeue"
	"github.com/Nekohy/AutoRclone/internal/remotefs"
	"github.com/Nekohy/AutoRclone/internal/store"
)

// Reservation magnification constants from spec.md §4.6: the fraction
// of an archive set's total_size that each stage holds in scratch at
// its peak, kept in one small table (per spec.md §9) rather than
// scattered across each stage method.
const (
	mDownload   = 1.0
	mDecompress = 1.1
	mCompress   = 1.1
)

// downloadReserveFactor is the entire downstream peak the download
// stage pre-pays for; later stages reserve nothing new and only release
// (spec.md §4.6, §9).
const downloadReserveFactor = mDownload + mDecompress + mCompress

// TaskRunner implements the per-stage lifecycle described in spec.md
// §4.6: reservations, the stage operation itself, error classification,
// scratch cleanup, queue hand-off, and the Store update, grounded on
// the teacher's archiveMaster/archiveWorker split in archive/depot.go
// and archive/archive.go generalized from one archiving pass to four
// chained stages.
type TaskRunner struct {
	scratch  scratchLayout
	destRoot string

	store  *store.Store
	budget *diskbudget.DiskBudget
	remote remotefs.RemoteFS
	packer packer.Packer
	queues *pipequeue.StageQueue
	stats  *runStats

	passwords        []string
	repackPassword   string
	compressionLevel int
	volumeSize       string
}

func reserveBytes(totalSize int64, factor float64) int64 {
	return int64(float64(totalSize) * factor)
}

// runDownload is stage 4.6.1. On success the set advances to step
// download(1) with status incomplete and is handed to the decompress
// queue. On failure the set still advances to step download(1) (it was
// the stage being attempted) but with the classified failure status,
// and is dropped from the pipeline.
func (tr *TaskRunner) runDownload(set *archiveset.ArchiveSet) {
	base := set.BaseName
	downloadDir := tr.scratch.downloadDir(base)

	reserve := reserveBytes(set.TotalSize, downloadReserveFactor)

	if err := tr.budget.Reserve(reserve); err != nil {
		status := archiveset.StatusUnknownErr
		msg := err.Error()
		if errors.Is(err, diskbudget.ErrTooLarge) {
			status = archiveset.StatusKnownError
			msg = fmt.Sprintf("too large for scratch budget: %v", err)
		}
		tr.finishFailed(set, archiveset.StepDownloaded, status, msg, downloadDir)
		return
	}

	if err := os.MkdirAll(downloadDir, 0o777); err != nil {
		tr.budget.Release(reserve)
		tr.finishFailed(set, archiveset.StepDownloaded, archiveset.StatusUnknownErr, err.Error(), downloadDir)
		return
	}

	for _, member := range set.MemberPaths {
		dst := filepath.Join(downloadDir, filepath.Base(member))
		if err := tr.remote.CopyFile(member, dst); err != nil {
			tr.budget.Release(reserve)
			tr.finishFailed(set, archiveset.StepDownloaded, archiveset.StatusKnownError,
				fmt.Sprintf("remote error downloading %s: %v", member, err), downloadDir)
			return
		}
	}

	if err := tr.store.UpdateProgress(base, archiveset.StepDownloaded, archiveset.StatusIncomplete, ""); err != nil {
		glog.Errorf("store update failed for %s: %v", base, err)
	}
	tr.queues.ToDecompress.Enqueue(set)
}

// runDecompress is stage 4.6.2. Its finally releases the download
// reservation share and removes the download scratch dir — the input
// this stage consumed — regardless of outcome. A failure here also
// releases the repack and upload stages' shares, since a dropped set
// will never reach them.
func (tr *TaskRunner) runDecompress(set *archiveset.ArchiveSet) {
	base := set.BaseName
	downloadDir := tr.scratch.downloadDir(base)
	decompressDir := tr.scratch.decompressDir(base)

	defer func() {
		os.RemoveAll(downloadDir)
		tr.budget.Release(reserveBytes(set.TotalSize, mDownload))
	}()

	err := tr.packer.Decompress(downloadDir, decompressDir, append([]string{}, tr.passwords...))
	if err != nil {
		status := archiveset.StatusUnknownErr
		switch {
		case errors.Is(err, packer.ErrNoRightPassword):
			status = archiveset.StatusBadPassword
		case errors.Is(err, packer.ErrMissingSource), errors.Is(err, packer.ErrUnpackError):
			status = archiveset.StatusKnownError
		}
		os.RemoveAll(decompressDir)
		// The set is dropped here, so the shares reserved for the
		// stages that will now never run must be released too, not
		// just the input share this stage's own defer frees.
		tr.budget.Release(reserveBytes(set.TotalSize, mDecompress+mCompress))
		tr.finishFailed(set, archiveset.StepDecompressed, status, err.Error(), "")
		return
	}

	if err := tr.store.UpdateProgress(base, archiveset.StepDecompressed, archiveset.StatusIncomplete, ""); err != nil {
		glog.Errorf("store update failed for %s: %v", base, err)
	}
	tr.queues.ToRepack.Enqueue(set)
}

// runRepack is stage 4.6.3. Its finally releases the decompress
// reservation share and removes the decompress scratch dir. A failure
// here also releases the upload stage's share, which will now never
// run.
func (tr *TaskRunner) runRepack(set *archiveset.ArchiveSet) {
	base := set.BaseName
	decompressDir := tr.scratch.decompressDir(base)
	compressDir := tr.scratch.compressDir(base)

	defer func() {
		os.RemoveAll(decompressDir)
		tr.budget.Release(reserveBytes(set.TotalSize, mDecompress))
	}()

	err := tr.packer.Compress(decompressDir, compressDir, tr.repackPassword, tr.compressionLevel, tr.volumeSize)
	if err != nil {
		status := archiveset.StatusUnknownErr
		if errors.Is(err, packer.ErrPackError) {
			status = archiveset.StatusKnownError
		}
		os.RemoveAll(compressDir)
		// As in runDecompress's failure path: release the share
		// reserved for the upload stage, which will now never run.
		tr.budget.Release(reserveBytes(set.TotalSize, mCompress))
		tr.finishFailed(set, archiveset.StepRepacked, status, err.Error(), "")
		return
	}

	if err := tr.store.UpdateProgress(base, archiveset.StepRepacked, archiveset.StatusIncomplete, ""); err != nil {
		glog.Errorf("store update failed for %s: %v", base, err)
	}
	tr.queues.ToUpload.Enqueue(set)
}

// runUpload is stage 4.6.4, the pipeline's terminal stage. Its finally
// releases the repack reservation share and removes the compress
// scratch dir — the upload stage's finally deletes the compress-stage
// scratch, per spec.md §4.6.
func (tr *TaskRunner) runUpload(set *archiveset.ArchiveSet) {
	base := set.BaseName
	compressDir := tr.scratch.compressDir(base)
	dest := filepath.Join(tr.destRoot, base)

	defer func() {
		os.RemoveAll(compressDir)
		tr.budget.Release(reserveBytes(set.TotalSize, mCompress))
	}()

	if err := tr.remote.Move(compressDir, dest, true); err != nil {
		tr.finishFailed(set, archiveset.StepUploaded, archiveset.StatusKnownError,
			fmt.Sprintf("remote error uploading: %v", err), "")
		return
	}

	if err := tr.store.UpdateProgress(base, archiveset.StepUploaded, archiveset.StatusComplete, ""); err != nil {
		glog.Errorf("store update failed for %s: %v", base, err)
	}
	tr.stats.addCompleted()
}

// finishFailed records a terminal failure: persists the classified
// status at the given step, logs it (matching the teacher's
// log-then-persist order in worker/worker.go's runSlave), purges the
// named scratch dir if any, and counts the error. The set is not
// handed off to any further queue.
func (tr *TaskRunner) finishFailed(set *archiveset.ArchiveSet, step archiveset.Step, status archiveset.Status, msg string, purgeDir string) {
	glog.Errorf("task %s failed at step %d: %s", set.BaseName, step, msg)

	if purgeDir != "" {
		os.RemoveAll(purgeDir)
	}

	if err := tr.store.UpdateProgress(set.BaseName, step, status, msg); err != nil {
		glog.Errorf("store update failed for %s: %v", set.BaseName, err)
	}

	tr.stats.addError()
}
