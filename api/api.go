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

// Package api contains structures and data-type definitions used for accessing
// an rdb server. The types from the package are shared by the client driver and
// the server implementations, so they form the public contract of the database.
//
// This is version v0 of the api and the following rules must be obeyed when
// a change is needed:
//  - Names of existing data-types cannot be changed
//  - Names of struct fields must be capitalized and cannot be changed
//  - Types of already existing fields cannot be changed
//  - Functions params and signatures cannot be changed.
//  - New fields could be added to the existing data structures
//  - New types and structures could be added
//  - New functions could be added either to existing interfaces or to the package
package api

import "fmt"

// Version contains the version of the api contract. A client sends it within
// the hello exchange, so incompatible parties can recognize each other before
// any data call is made.
const Version = "0.1.0"

type (
	// Creds struct contains credentials for authenticating a client connection.
	// The zero value means an anonymous connection.
	Creds struct {
		// User contains the account name
		User string

		// Secret contains the account secret
		Secret string
	}
)

func (c Creds) String() string {
	return fmt.Sprintf("{User: %s, Secret: ***(%d)}", c.User, len(c.Secret))
}
