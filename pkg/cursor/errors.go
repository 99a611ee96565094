// Copyright 2019-2020 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cursor

import (
	"fmt"

	"github.com/pkg/errors"
)

type (
	// MisuseError indicates that the cursor contract has been violated by the
	// caller: an operation was invoked on a closed cursor, Skip or Limit got a
	// negative argument, a bulk read was requested from the middle of the
	// result etc. The situation is always a caller bug, so retrying makes no
	// sense.
	MisuseError struct {
		msg string
	}

	// NoSuchRecordError indicates that the record requested by the operation
	// doesn't exist - the cursor doesn't point at a record yet, the result
	// turned out to be empty, or it contains more records than the operation
	// expects.
	NoSuchRecordError struct {
		msg string
	}
)

func newMisuseError(format string, args ...interface{}) error {
	return &MisuseError{msg: fmt.Sprintf(format, args...)}
}

func (e *MisuseError) Error() string {
	return e.msg
}

func newNoSuchRecordError(format string, args ...interface{}) error {
	return &NoSuchRecordError{msg: fmt.Sprintf(format, args...)}
}

func (e *NoSuchRecordError) Error() string {
	return e.msg
}

// IsMisuse reports whether err or its cause is a cursor contract violation
func IsMisuse(err error) bool {
	_, ok := errors.Cause(err).(*MisuseError)
	return ok
}

// IsNoSuchRecord reports whether err or its cause indicates that the record
// requested by a cursor operation doesn't exist
func IsNoSuchRecord(err error) bool {
	_, ok := errors.Cause(err).(*NoSuchRecordError)
	return ok
}
