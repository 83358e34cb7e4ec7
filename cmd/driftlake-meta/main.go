// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package main

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/driftlake/driftlake-go"

	"github.com/docopt/docopt-go"
)

const usage = `driftlake-meta.

Usage:
  driftlake-meta manifests [options] FILE
  driftlake-meta entries [options] FILE
  driftlake-meta -h | --help | --version

Commands:
  manifests   List the manifest summaries in a manifest list file.
  entries     List the data file entries of the manifests in a manifest list.

Arguments:
  FILE        path or file:// URI of an avro manifest list file

Options:
  -h --help       show this help message and exit
  --output TYPE   output type (json/text) [default: text]
  --manifest N    only read the manifest at the given position [default: -1]
  --with-deleted  include entries whose status is deleted`

type config struct {
	Manifests bool `docopt:"manifests"`
	Entries   bool `docopt:"entries"`

	File string `docopt:"FILE"`

	Output      string `docopt:"--output"`
	Manifest    int    `docopt:"--manifest"`
	WithDeleted bool   `docopt:"--with-deleted"`
}

// localFS resolves manifest locations against the local file system.
// Manifest lists typically reference manifests by absolute URI; when a
// path cannot be found as written, it is retried relative to the
// directory of the manifest list so relocated metadata dirs still work.
type localFS struct {
	base string
}

func (l localFS) Open(location string) (io.ReadCloser, error) {
	path := strings.TrimPrefix(location, "file://")
	f, err := os.Open(path)
	if err != nil && l.base != "" {
		if rel, relErr := os.Open(filepath.Join(l.base, filepath.Base(path))); relErr == nil {
			return rel, nil
		}
	}

	return f, err
}

func main() {
	args, err := docopt.ParseArgs(usage, os.Args[1:], driftlake.Version())
	if err != nil {
		log.Fatal(err)
	}

	cfg := config{}
	if err := args.Bind(&cfg); err != nil {
		log.Fatal(err)
	}

	var out output
	switch strings.ToLower(cfg.Output) {
	case "text":
		out = textOutput{}
	case "json":
		out = jsonOutput{}
	default:
		log.Fatal("unimplemented output type")
	}

	listPath := strings.TrimPrefix(cfg.File, "file://")
	f, err := os.Open(listPath)
	if err != nil {
		out.Error(err)
	}
	defer f.Close()

	files, err := driftlake.ReadManifestList(f)
	if err != nil {
		out.Error(err)
	}

	switch {
	case cfg.Manifests:
		out.Manifests(files)
	case cfg.Entries:
		if cfg.Manifest >= 0 {
			if cfg.Manifest >= len(files) {
				log.Fatalf("manifest index %d out of range, list has %d manifests", cfg.Manifest, len(files))
			}
			files = files[cfg.Manifest : cfg.Manifest+1]
		}

		fs := localFS{base: filepath.Dir(listPath)}
		for _, m := range files {
			entries, err := m.FetchEntries(fs, !cfg.WithDeleted)
			if err != nil {
				out.Error(err)
			}
			out.Entries(m, entries)
		}
	}
}
