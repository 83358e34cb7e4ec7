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
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a caller passes a value that
	// violates a constructor or builder precondition.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrContainerRead indicates the underlying byte stream is truncated,
	// corrupt, or not a valid object container file. Errors raised by the
	// container reader are wrapped with this sentinel and otherwise
	// surfaced unchanged.
	ErrContainerRead = errors.New("container read failed")

	// ErrFieldDecode indicates a field was present in a record but its
	// shape did not match the declared type, such as a key/value pair
	// missing a member or malformed bytes for the declared value type.
	ErrFieldDecode = errors.New("field decode failed")

	// ErrSchemaMismatch indicates a required field was entirely absent or
	// an enumerated integer field held a value outside its known domain.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// fieldErrorf wraps sentinel with the path of the offending field so
// callers can report which part of the record failed. Decode of a
// container record aborts on the first such error.
func fieldErrorf(sentinel error, path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", sentinel, path, fmt.Sprintf(format, args...))
}
