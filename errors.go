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

package rdb

import (
	"fmt"

	"github.com/pkg/errors"
)

type (
	// ServiceUnavailableError indicates that the server could not be reached:
	// the dial or the hello exchange failed, or none of the addresses given to
	// ConnectToFirstAvailable accepted the connection. The caller may retry
	// with another address or later.
	ServiceUnavailableError struct {
		msg string
	}
)

// ErrClosed is returned by the Driver operations after Close() was called on
// it. Closing the driver twice is a caller bug and returns ErrClosed as well.
var ErrClosed = errors.New("the driver is already closed")

func newServiceUnavailableError(format string, args ...interface{}) error {
	return &ServiceUnavailableError{msg: fmt.Sprintf(format, args...)}
}

func (e *ServiceUnavailableError) Error() string {
	return e.msg
}

// IsServiceUnavailable reports whether err or its cause is a connectivity
// failure, the condition ConnectToFirstAvailable skips an address on
func IsServiceUnavailable(err error) bool {
	_, ok := errors.Cause(err).(*ServiceUnavailableError)
	return ok
}
