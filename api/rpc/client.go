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

package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	rrpc "github.com/logrange/range/pkg/rpc"
	"github.com/logrange/range/pkg/transport"
	"github.com/logrange/rdb/api"
	"github.com/pkg/errors"
)

// rpc endpoints
const (
	cRpcEpHello          = 1
	cRpcEpQuerierQuery   = 2
	cRpcEpQuerierRelease = 3
	cRpcEpIngestorWrite  = 4
)

const cHelloTimeout = 5 * time.Second

// ErrAuthRejected is returned by the hello exchange when the server refuses
// the provided credentials. The error is registered within the rpc machinery,
// so it travels over the wire as itself, not as a plain text.
var ErrAuthRejected = errors.New("authentication rejected by the server")

func init() {
	rrpc.RegisterError(ErrAuthRejected)
}

type (
	// Client is the rpc client which implements api.Client interface for
	// communicating with an rdb server over TCP
	Client struct {
		lock   sync.Mutex
		rc     rrpc.Client
		cfg    transport.Config
		creds  api.Creds
		srvVer string
		cqrier *clntQuerier
		cing   *clntIngestor
	}
)

// NewClient creates the new Client for connecting to the server, using the
// transport config tcfg and the credentials creds. The connection is
// established and the hello exchange is made before the function returns, so
// a non-nil error means either the server could not be reached (a dial
// problem) or it rejected the hello (ErrAuthRejected for instance).
func NewClient(tcfg transport.Config, creds api.Creds) (*Client, error) {
	if err := tcfg.Check(); err != nil {
		return nil, fmt.Errorf("invalid config; %v", err)
	}

	c := new(Client)
	c.cfg = tcfg
	c.creds = creds

	c.lock.Lock()
	err := c.connect()
	c.lock.Unlock()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Close() error {
	c.lock.Lock()
	var err error
	if c.rc != nil {
		err = c.rc.Close()
		c.rc = nil
	}
	c.cqrier = nil
	c.cing = nil
	c.lock.Unlock()
	return err
}

// ServerVersion returns the version reported by the server in the hello
// exchange. The result is empty if the client is not connected yet.
func (c *Client) ServerVersion() string {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.srvVer
}

// connect dials the server and makes the hello exchange. There is only one
// dial attempt, connectivity failures are reported to the caller as they are.
// The caller must hold c.lock.
func (c *Client) connect() error {
	if c.rc != nil {
		return nil
	}

	conn, err := transport.NewClientConn(c.cfg)
	if err != nil {
		return err
	}

	rc := rrpc.NewClient(conn)
	srvVer, err := hello(rc, c.creds)
	if err != nil {
		_ = rc.Close()
		return err
	}

	c.rc = rc
	c.srvVer = srvVer
	c.cqrier = new(clntQuerier)
	c.cqrier.rc = rc
	c.cing = new(clntIngestor)
	c.cing.rc = rc
	return nil
}

// hello sends the credentials and the client version to the server and
// receives the server version back
func hello(rc rrpc.Client, creds api.Creds) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cHelloTimeout)
	defer cancel()

	hr := &helloRequest{user: creds.User, secret: creds.Secret, version: api.Version}
	resp, opErr, err := rc.Call(ctx, cRpcEpHello, hr)
	if err != nil {
		return "", err
	}

	srvVer := string(resp)
	rc.Collect(resp)
	return srvVer, opErr
}

// Query implements api.Querier, it returns one page of the query result per call
func (c *Client) Query(ctx context.Context, req *api.QueryRequest, res *api.QueryResult) error {
	c.lock.Lock()
	if err := c.connect(); err != nil {
		c.lock.Unlock()
		return err
	}
	q := c.cqrier
	c.lock.Unlock()

	err := q.Query(ctx, req, res)
	if err != nil {
		_ = c.Close()
	}

	return err
}

// Release implements api.Querier, it abandons the server-side stream by its reqId
func (c *Client) Release(ctx context.Context, reqId uint64, res *api.Summary) error {
	c.lock.Lock()
	if err := c.connect(); err != nil {
		c.lock.Unlock()
		return err
	}
	q := c.cqrier
	c.lock.Unlock()

	err := q.Release(ctx, reqId, res)
	if err != nil {
		_ = c.Close()
	}

	return err
}

// Write implements api.Ingestor, it appends the records to the source
func (c *Client) Write(ctx context.Context, source string, recs []*api.Record, res *api.WriteResult) error {
	c.lock.Lock()
	if err := c.connect(); err != nil {
		c.lock.Unlock()
		return err
	}
	ci := c.cing
	c.lock.Unlock()

	err := ci.Write(ctx, source, recs, res)
	if err != nil {
		_ = c.Close()
	}

	return err
}
