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

package driftlake

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ManifestFileName produces the file name for the num'th manifest
// written during the commit identified by commit.
func ManifestFileName(num int, commit uuid.UUID) string {
	return fmt.Sprintf("%s-m%d.avro", commit, num)
}

// ManifestListFileName produces the file name for the manifest list of
// the given snapshot. The attempt counter distinguishes retries of the
// same logical commit so a failed attempt never overwrites a later one.
func ManifestListFileName(snapshotID int64, attempt int, commit uuid.UUID) string {
	return fmt.Sprintf("snap-%d-%d-%s.avro", snapshotID, attempt, commit)
}

// MetadataFileLocation joins a table location with a metadata file name.
func MetadataFileLocation(tableLocation, name string) string {
	return fmt.Sprintf("%s/metadata/%s", strings.TrimRight(tableLocation, "/"), name)
}
