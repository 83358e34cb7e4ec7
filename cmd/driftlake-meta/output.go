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
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/driftlake/driftlake-go"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

type output interface {
	Manifests([]driftlake.ManifestFile)
	Entries(driftlake.ManifestFile, []driftlake.ManifestEntry)
	Error(error)
}

type textOutput struct{}

func (textOutput) Manifests(files []driftlake.ManifestFile) {
	data := pterm.TableData{{"Path", "Length", "Spec", "Content", "Seq", "MinSeq", "Snapshot", "Added", "Existing", "Deleted"}}
	for _, f := range files {
		data = append(data, []string{
			f.FilePath(),
			strconv.FormatInt(f.Length(), 10),
			strconv.Itoa(int(f.PartitionSpecID())),
			f.ManifestContent().String(),
			strconv.FormatInt(f.SequenceNum(), 10),
			strconv.FormatInt(f.MinSequenceNum(), 10),
			strconv.FormatInt(f.SnapshotID(), 10),
			strconv.Itoa(int(f.AddedDataFiles())),
			strconv.Itoa(int(f.ExistingDataFiles())),
			strconv.Itoa(int(f.DeletedDataFiles())),
		})
	}

	pterm.DefaultTable.
		WithBoxed(true).
		WithHasHeader(true).
		WithHeaderRowSeparator("-").
		WithData(data).Render()
}

func (textOutput) Entries(m driftlake.ManifestFile, entries []driftlake.ManifestEntry) {
	tree := pterm.LeveledList{}
	for _, e := range entries {
		df := e.DataFile()
		tree = append(tree, pterm.LeveledListItem{
			Level: 0,
			Text: fmt.Sprintf("%s %s (%s, snapshot %s, seq %s)",
				df.ContentType(), df.FilePath(), df.FileFormat(),
				formatOptional(e.SnapshotID()), formatOptional(e.SequenceNum())),
		})
		tree = append(tree, pterm.LeveledListItem{
			Level: 1,
			Text:  fmt.Sprintf("records: %d, size: %d bytes", df.Count(), df.FileSizeBytes()),
		})
	}

	node := putils.TreeFromLeveledList(tree)
	node.Text = "Manifest: " + m.FilePath()
	pterm.DefaultTree.WithRoot(node).Render()
}

func (textOutput) Error(err error) {
	log.Fatal(err)
}

func formatOptional(v *int64) string {
	if v == nil {
		return "null"
	}

	return strconv.FormatInt(*v, 10)
}

type jsonOutput struct{}

type jsonManifest struct {
	Path            string `json:"manifest_path"`
	Length          int64  `json:"manifest_length"`
	PartitionSpecID int32  `json:"partition_spec_id"`
	Content         string `json:"content"`
	SequenceNumber  int64  `json:"sequence_number"`
	MinSequenceNum  int64  `json:"min_sequence_number"`
	AddedSnapshotID int64  `json:"added_snapshot_id"`
	AddedFiles      int32  `json:"added_files_count"`
	ExistingFiles   int32  `json:"existing_files_count"`
	DeletedFiles    int32  `json:"deleted_files_count"`
}

func (jsonOutput) Manifests(files []driftlake.ManifestFile) {
	out := make([]jsonManifest, 0, len(files))
	for _, f := range files {
		out = append(out, jsonManifest{
			Path:            f.FilePath(),
			Length:          f.Length(),
			PartitionSpecID: f.PartitionSpecID(),
			Content:         f.ManifestContent().String(),
			SequenceNumber:  f.SequenceNum(),
			MinSequenceNum:  f.MinSequenceNum(),
			AddedSnapshotID: f.SnapshotID(),
			AddedFiles:      f.AddedDataFiles(),
			ExistingFiles:   f.ExistingDataFiles(),
			DeletedFiles:    f.DeletedDataFiles(),
		})
	}

	if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
		log.Fatal(err)
	}
}

type jsonEntry struct {
	Status      string `json:"status"`
	SnapshotID  *int64 `json:"snapshot_id"`
	SequenceNum *int64 `json:"sequence_number"`
	FilePath    string `json:"file_path"`
	FileFormat  string `json:"file_format"`
	Content     string `json:"content"`
	RecordCount int64  `json:"record_count"`
	FileSize    int64  `json:"file_size_in_bytes"`
}

func (jsonOutput) Entries(m driftlake.ManifestFile, entries []driftlake.ManifestEntry) {
	out := struct {
		Manifest string      `json:"manifest"`
		Entries  []jsonEntry `json:"entries"`
	}{Manifest: m.FilePath(), Entries: make([]jsonEntry, 0, len(entries))}

	for _, e := range entries {
		df := e.DataFile()
		out.Entries = append(out.Entries, jsonEntry{
			Status:      strconv.Itoa(int(e.Status())),
			SnapshotID:  e.SnapshotID(),
			SequenceNum: e.SequenceNum(),
			FilePath:    df.FilePath(),
			FileFormat:  string(df.FileFormat()),
			Content:     df.ContentType().String(),
			RecordCount: df.Count(),
			FileSize:    df.FileSizeBytes(),
		})
	}

	if err := json.NewEncoder(os.Stdout).Encode(out); err != nil {
		log.Fatal(err)
	}
}

func (jsonOutput) Error(err error) {
	log.Fatal(err)
}
