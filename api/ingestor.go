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

package api

import (
	"context"
	"fmt"
)

type (

	// WriteResult struct contains the result of Ingestor.Write operation execution.
	WriteResult struct {
		// Accepted contains the number of records accepted by the server
		Accepted int

		// Err the operation error. If the Err is nil, the operation successfully executed
		Err error `json:"-"`
	}

	// Ingestor provides Write method for appending records to a source. The
	// interface is exposed as a public API.
	Ingestor interface {
		// Write appends the records to the source with the name provided. All
		// the records must have the same keys. It returns an error which
		// indicates that the records could not be delivered to the server.
		Write(ctx context.Context, source string, recs []*Record, res *WriteResult) error
	}
)

func (wr *WriteResult) String() string {
	return fmt.Sprintf("{Accepted: %d, Err: %v}", wr.Accepted, wr.Err)
}
