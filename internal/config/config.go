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

// Package config collects the rehydration pipeline's startup
// configuration into a single immutable value, loaded once from an INI
// file and never mutated afterwards.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/scalingdata/gcfg"
)

// General holds process-wide settings.
type General struct {
	LogDir     string
	ScratchDir string
	Cores      int
	Verbosity  int
	Heartbeat  int // seconds
}

// Remote holds the source/destination rclone remotes and the rclone
// binary used to reach them.
type Remote struct {
	RclonePath string
	RcloneAddr string
	SourcePath string // "<remote>:<path>"
	DestPath   string // "<remote>:<path>"
	GroupDepth int
}

// Archive holds the archive-tool invocation settings.
type Archive struct {
	SevenZipPath     string
	Passwords        []string
	RepackPassword   string
	CompressionLevel int
	VolumeSize       string
}

// Workers holds per-stage worker-pool sizes.
type Workers struct {
	Download   int
	Decompress int
	Repack     int
	Upload     int
}

// Budget holds the scratch-disk admission settings.
type Budget struct {
	// TotalBytes is the configured ceiling. Zero means probe local free
	// space at the scratch root instead of trusting a configured number.
	TotalBytes int64
}

// Server holds the status HTTP endpoint's bind address.
type Server struct {
	Host string
	Port int
}

// Config is the immutable, fully-resolved configuration passed to the
// Pipeline constructor. It replaces the mutable package-level globals
// the original script relied on.
type Config struct {
	General General
	Remote  Remote
	Archive Archive
	Workers Workers
	Budget  Budget
	Server  Server
}

// iniShape mirrors Config's fields in the shape gcfg expects: one
// exported struct field per INI section, tagged implicitly by name.
type iniShape struct {
	General struct {
		LogDir     string
		ScratchDir string
		Cores      int
		Verbosity  int
		Heartbeat  int
	}
	Remote struct {
		RclonePath string
		RcloneAddr string
		SourcePath string
		DestPath   string
		GroupDepth int
	}
	Archive struct {
		SevenZipPath     string
		Password         []string
		RepackPassword   string
		CompressionLevel int
		VolumeSize       string
	}
	Workers struct {
		Download   int
		Decompress int
		Repack     int
		Upload     int
	}
	Budget struct {
		TotalBytes int64
	}
	Server struct {
		Host string
		Port int
	}
}

// Load reads an INI file at path and returns a fully-resolved, absolute
// Config. Relative directories are resolved against the current working
// directory the same way cmds/rombaserver/main.go resolves its own
// General.LogDir/TmpDir at startup.
func Load(path string) (*Config, error) {
	var ini iniShape

	if err := gcfg.ReadFileInto(&ini, path); err != nil {
		return nil, fmt.Errorf("reading config from %s: %v", path, err)
	}

	cfg := new(Config)
	cfg.General.Cores = ini.General.Cores
	cfg.General.Verbosity = ini.General.Verbosity
	cfg.General.Heartbeat = ini.General.Heartbeat
	if cfg.General.Heartbeat <= 0 {
		cfg.General.Heartbeat = 5
	}

	var err error
	cfg.General.LogDir, err = filepath.Abs(ini.General.LogDir)
	if err != nil {
		return nil, fmt.Errorf("resolving log dir: %v", err)
	}
	cfg.General.ScratchDir, err = filepath.Abs(ini.General.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("resolving scratch dir: %v", err)
	}

	cfg.Remote.RclonePath = ini.Remote.RclonePath
	cfg.Remote.RcloneAddr = ini.Remote.RcloneAddr
	if cfg.Remote.RcloneAddr == "" {
		cfg.Remote.RcloneAddr = "127.0.0.1:5572"
	}
	cfg.Remote.SourcePath = ini.Remote.SourcePath
	cfg.Remote.DestPath = ini.Remote.DestPath
	cfg.Remote.GroupDepth = ini.Remote.GroupDepth

	cfg.Archive.SevenZipPath = ini.Archive.SevenZipPath
	if cfg.Archive.SevenZipPath == "" {
		cfg.Archive.SevenZipPath = "7z"
	}
	cfg.Archive.Passwords = ini.Archive.Password
	cfg.Archive.RepackPassword = ini.Archive.RepackPassword
	cfg.Archive.CompressionLevel = ini.Archive.CompressionLevel
	cfg.Archive.VolumeSize = ini.Archive.VolumeSize
	if cfg.Archive.VolumeSize == "" {
		cfg.Archive.VolumeSize = "4G"
	}

	cfg.Workers.Download = orDefault(ini.Workers.Download, 2)
	cfg.Workers.Decompress = orDefault(ini.Workers.Decompress, cfg.Workers.Download*4)
	cfg.Workers.Repack = orDefault(ini.Workers.Repack, cfg.Workers.Download*4)
	cfg.Workers.Upload = orDefault(ini.Workers.Upload, cfg.Workers.Download*4)

	cfg.Budget.TotalBytes = ini.Budget.TotalBytes

	cfg.Server.Host = ini.Server.Host
	cfg.Server.Port = ini.Server.Port
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8723
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (cfg *Config) validate() error {
	if cfg.Remote.SourcePath == "" {
		return fmt.Errorf("remote.sourcepath is required")
	}
	if cfg.Remote.DestPath == "" {
		return fmt.Errorf("remote.destpath is required")
	}
	if cfg.General.ScratchDir == "" {
		return fmt.Errorf("general.scratchdir is required")
	}
	return nil
}
