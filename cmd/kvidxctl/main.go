// Copyright 2026 The kvidxkit Authors
// This file is part of kvidxkit.
//
// kvidxkit is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kvidxkit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kvidxkit. If not, see <http://www.gnu.org/licenses/>.

// Command kvidxctl is a small operator CLI over the kvidxkit facade: open
// a store, dump its stats, and export/import its contents.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/mattsta/kvidxkit/kv"
	_ "github.com/mattsta/kvidxkit/kv/btreestore"
	_ "github.com/mattsta/kvidxkit/kv/lsmstore"
	_ "github.com/mattsta/kvidxkit/kv/mmapstore"
)

type statsCmd struct {
	Backend string `required:"" help:"Adapter name (btree, mmap, lsm)."`
	Path    string `arg:"" help:"Store path."`
}

func (c *statsCmd) Run() error {
	h, err := kv.Open(c.Backend, c.Path, kv.Config{})
	if err != nil {
		return err
	}
	defer h.Close()

	s, err := h.Stats()
	if err != nil {
		return err
	}
	fmt.Printf("keys=%d data-bytes=%d file-bytes=%d\n", s.KeyCount, s.DataSize, s.FileSize)
	if s.HasMinKey {
		fmt.Printf("min-key=%d\n", s.MinKey)
	}
	if s.HasMaxKey {
		fmt.Printf("max-key=%d\n", s.MaxKey)
	}
	return nil
}

type exportCmd struct {
	Backend string `required:"" help:"Adapter name (btree, mmap, lsm)."`
	Path    string `arg:"" help:"Store path."`
	Out     string `arg:"" help:"Output file path."`
	Format  string `default:"binary" help:"binary, json, or csv."`
}

func (c *exportCmd) Run() error {
	h, err := kv.Open(c.Backend, c.Path, kv.Config{})
	if err != nil {
		return err
	}
	defer h.Close()

	return h.Export(c.Out, kv.ExportOptions{Format: kv.ExportFormat(c.Format), IncludeMetadata: true}, nil)
}

type importCmd struct {
	Backend string `required:"" help:"Adapter name (btree, mmap, lsm)."`
	Path    string `arg:"" help:"Store path."`
	In      string `arg:"" help:"Input file path."`
	Format  string `default:"binary" help:"binary or csv."`
}

func (c *importCmd) Run() error {
	h, err := kv.Open(c.Backend, c.Path, kv.Config{})
	if err != nil {
		return err
	}
	defer h.Close()

	return h.Import(c.In, kv.ImportOptions{Format: kv.ExportFormat(c.Format)}, nil)
}

var cli struct {
	Verbose bool      `help:"Enable debug logging." short:"v"`
	Stats   statsCmd  `cmd:"" help:"Print store statistics."`
	Export  exportCmd `cmd:"" help:"Export a store's contents to a file."`
	Import  importCmd `cmd:"" help:"Import entries from a file into a store."`
}

func main() {
	ctx := kong.Parse(&cli, kong.Name("kvidxctl"), kong.Description("kvidxkit operator CLI"))

	var logger *zap.Logger
	var err error
	if cli.Verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "kvidxctl: logger init failed:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := ctx.Run(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
