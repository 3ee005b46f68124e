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

package packer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/uwedeportivo/sevenzip"
)

// SevenZipPacker decompresses and compresses archives by shelling out
// to the 7z binary, exactly as fileprocess.py's FileProcess does via
// subprocess.run. Password search during Decompress runs every
// candidate in parallel, each into its own scratch subdirectory, and
// cancels its siblings' subprocesses as soon as one succeeds (spec.md
// §4.2, §5, §9).
type SevenZipPacker struct {
	SevenZipPath string
	Threads      int
	AutoDelete   bool
}

func NewSevenZipPacker(path string, threads int, autoDelete bool) *SevenZipPacker {
	if threads <= 0 {
		threads = 1
	}
	return &SevenZipPacker{SevenZipPath: path, Threads: threads, AutoDelete: autoDelete}
}

var volumeSuffix = regexp.MustCompile(`(?i)(?:\.part(\d+)\.[a-z0-9]+|\.(\d{3})(?:\.[a-z0-9]+)?)$`)

// volumeRank orders a directory's files so the lead volume of a
// multi-part archive sorts first: an unsuffixed name (foo.7z) ranks 0,
// foo.part1.rar/foo.7z.001 rank by their numeric suffix.
func volumeRank(name string) int {
	m := volumeSuffix.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	for _, g := range m[1:] {
		if g != "" {
			n, _ := strconv.Atoi(g)
			return n
		}
	}
	return 0
}

func findPrimaryVolume(srcDir string) (string, error) {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return "", err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no files found in %s", srcDir)
	}

	sort.Slice(names, func(i, j int) bool {
		ri, rj := volumeRank(names[i]), volumeRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})

	return filepath.Join(srcDir, names[0]), nil
}

// validateSevenZipVolume lists a .7z volume's central directory before
// any extraction is attempted, so a truncated/corrupt volume is
// classified missing-source without spending a subprocess invocation
// (SPEC_FULL.md §4.6 addition), the same listing operation the teacher
// uses to index .7z contents in archive/archive.go's archive7Zip.
func validateSevenZipVolume(path string) error {
	if !strings.HasSuffix(strings.ToLower(path), ".7z") {
		return nil
	}
	zr, err := sevenzip.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingSource, err)
	}
	defer zr.Close()
	return nil
}

func (p *SevenZipPacker) Decompress(srcDir, dstDir string, passwords []string) error {
	if fi, err := os.Stat(srcDir); err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrMissingSource, srcDir)
	}

	primary, err := findPrimaryVolume(srcDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingSource, err)
	}

	if err := validateSevenZipVolume(primary); err != nil {
		return err
	}

	if err := os.MkdirAll(dstDir, 0o777); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrUnpackError, dstDir, err)
	}

	candidates := append(append([]string{}, passwords...), "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type attempt struct {
		dir         string
		wrongPasswd bool
		err         error
	}

	results := make([]attempt, len(candidates))
	dirs := make([]string, len(candidates))

	var wg sync.WaitGroup
	var winnerOnce sync.Once
	winner := -1

	for i, pwd := range candidates {
		dirs[i] = fmt.Sprintf("%s.attempt-%d", dstDir, i)
		wg.Add(1)
		go func(i int, pwd string) {
			defer wg.Done()
			wrongPasswd, err := p.runDecompress(ctx, primary, dirs[i], pwd)
			results[i] = attempt{dir: dirs[i], wrongPasswd: wrongPasswd, err: err}
			if err == nil {
				winnerOnce.Do(func() {
					winner = i
					cancel()
				})
			}
		}(i, pwd)
	}

	wg.Wait()

	for i, dir := range dirs {
		if i == winner {
			continue
		}
		os.RemoveAll(dir)
	}

	if winner == -1 {
		allWrongPassword := true
		var lastErr error
		for _, r := range results {
			if !r.wrongPasswd {
				allWrongPassword = false
			}
			if r.err != nil {
				lastErr = r.err
			}
		}
		if allWrongPassword {
			return fmt.Errorf("%w: no valid password out of %d candidates for %s", ErrNoRightPassword, len(candidates), srcDir)
		}
		return fmt.Errorf("%w: %v", ErrUnpackError, lastErr)
	}

	winDir := dirs[winner]
	entries, err := os.ReadDir(winDir)
	if err != nil {
		return fmt.Errorf("%w: reading winning attempt dir: %v", ErrUnpackError, err)
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(winDir, e.Name()), filepath.Join(dstDir, e.Name())); err != nil {
			return fmt.Errorf("%w: %v", ErrUnpackError, err)
		}
	}
	os.RemoveAll(winDir)

	if p.AutoDelete {
		os.RemoveAll(srcDir)
	}

	return nil
}

// runDecompress runs a single 7z extraction attempt with one password
// candidate into its own output directory. wrongPasswd is true when 7z
// reported a bad password rather than any other failure.
func (p *SevenZipPacker) runDecompress(ctx context.Context, primary, outDir, pwd string) (wrongPasswd bool, err error) {
	if err := os.MkdirAll(outDir, 0o777); err != nil {
		return false, err
	}

	args := []string{"x", primary, "-o" + outDir, "-aoa", fmt.Sprintf("-mmt=%d", p.Threads)}
	if pwd != "" {
		args = append(args, "-p"+pwd)
	} else {
		args = append(args, "-p")
	}

	cmd := exec.CommandContext(ctx, p.SevenZipPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	glog.V(3).Infof("decompress attempt: %s %v", p.SevenZipPath, args)

	err = cmd.Run()
	if err == nil {
		return false, nil
	}
	if ctx.Err() != nil {
		// Killed because a sibling already won; not a real failure.
		return false, ctx.Err()
	}
	if strings.Contains(stderr.String(), "Wrong password") {
		return true, fmt.Errorf("wrong password")
	}
	return false, fmt.Errorf("7z exited with error: %v: %s", err, stderr.String())
}

func (p *SevenZipPacker) Compress(srcDir, dstDir, password string, level int, volumeSize string) error {
	if err := os.MkdirAll(dstDir, 0o777); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrPackError, dstDir, err)
	}

	srcName := filepath.Base(strings.TrimRight(srcDir, string(filepath.Separator)))
	dstLocation := filepath.Join(dstDir, srcName+".7z")

	args := []string{"a", "-y", fmt.Sprintf("-mx%d", level), fmt.Sprintf("-mmt=%d", p.Threads)}
	if p.AutoDelete {
		args = append(args, "-sdel")
	}
	if password != "" {
		args = append(args, "-p"+password)
	}
	if volumeSize != "" {
		args = append(args, "-v"+volumeSize)
	}
	args = append(args, dstLocation, srcDir)

	glog.V(3).Infof("compress: %s %v", p.SevenZipPath, args)

	cmd := exec.Command(p.SevenZipPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v: %s", ErrPackError, err, stderr.String())
	}

	return nil
}
