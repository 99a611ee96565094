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

// Package rdb is the client driver of the rdb record-streaming database.
//
// A program connects by Connect() or ConnectToFirstAvailable(), appends
// records with Driver.Append() and reads them back with Driver.Query(), which
// returns a cursor (see github.com/logrange/rdb/pkg/cursor) over the query
// result. The result streams from the server page by page while the cursor is
// walked, so a client never holds more than one page in memory, whatever the
// result size is.
//
//	d, err := rdb.Connect("rdb://127.0.0.1:9988", api.Creds{}, nil)
//	...
//	cur, err := d.Query(ctx, "select from logs where sev = error limit 1000")
//	...
//	defer cur.Close()
//	for {
//		ok, err := cur.Next(ctx)
//		...
//	}
package rdb

import "github.com/logrange/rdb/api"

// Version is the version of the driver, it is sent to the server within the
// hello exchange
const Version = api.Version
