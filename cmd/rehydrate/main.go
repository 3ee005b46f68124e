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

// Command rehydrate discovers multi-volume archive sets on a remote,
// downloads, decompresses, repacks and re-uploads each one under a
// disk-budget-gated pipeline. Its startup sequence is the same shape as
// cmds/rombaserver/main.go's: load an ini config, wire up the
// collaborators it depends on, install a signal handler, then serve.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/golang/glog"

	"github.com/Nekohy/AutoRclone/internal/config"
	"github.com/Nekohy/AutoRclone/internal/diskbudget"
	"github.com/Nekohy/AutoRclone/internal/packer"
	"github.com/Nekohy/AutoRclone/internal/pipeline"
	"github.com/Nekohy/AutoRclone/internal/remotefs"
	"github.com/Nekohy/AutoRclone/internal/status"
	"github.com/Nekohy/AutoRclone/internal/store"
)

var iniPath = flag.String("config", "rehydrate.ini", "path to the rehydration pipeline's ini config")

func signalCatcher(pl *pipeline.Pipeline) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	glog.Info("received shutdown signal; draining")
	pl.Shutdown()
	os.Exit(0)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*iniPath)
	if err != nil {
		fatalf("loading config from %s failed: %v", *iniPath, err)
	}

	if err := os.MkdirAll(cfg.General.LogDir, 0o777); err != nil {
		fatalf("creating log dir failed: %v", err)
	}
	flag.Set("log_dir", cfg.General.LogDir)
	flag.Set("alsologtostderr", "true")
	flag.Set("v", strconv.Itoa(cfg.General.Verbosity))
	flag.Parse()

	if cfg.General.Cores > 0 {
		runtime.GOMAXPROCS(cfg.General.Cores)
	}

	dbPath := filepath.Join(cfg.General.ScratchDir, "rehydrate.db")
	st, err := store.Open(dbPath)
	if err != nil {
		fatalf("opening store failed: %v", err)
	}
	defer st.Close()

	totalBudget := cfg.Budget.TotalBytes
	if totalBudget <= 0 {
		free, err := diskbudget.ProbeFreeSpace(cfg.General.ScratchDir)
		if err != nil {
			fatalf("no budget configured and free-space probing failed: %v", err)
		}
		totalBudget = free
		glog.Infof("no budget configured; probed %d free bytes at %s", totalBudget, cfg.General.ScratchDir)
	}
	budget := diskbudget.New(totalBudget)

	rc, err := remotefs.StartRclone(cfg.Remote.RclonePath, cfg.Remote.RcloneAddr)
	if err != nil {
		fatalf("starting rclone failed: %v", err)
	}
	defer rc.Close()

	pk := packer.NewSevenZipPacker(cfg.Archive.SevenZipPath, cfg.General.Cores, true)

	pl := pipeline.New(cfg, st, budget, rc, pk)
	pl.SetMetrics(status.NewMetrics())

	n, err := pl.Discover()
	if err != nil {
		fatalf("discovery failed: %v", err)
	}
	glog.Infof("discovered %d archive sets", n)

	if err := pl.Start(); err != nil {
		fatalf("starting pipeline failed: %v", err)
	}

	go signalCatcher(pl)

	statusAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := status.New(statusAddr, func() interface{} { return pl.Status() })
	srv.Start()

	pl.Run()
	pl.Shutdown()
}
