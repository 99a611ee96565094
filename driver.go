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
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/jrivets/log4g"
	"github.com/logrange/rdb/api"
	"github.com/logrange/rdb/api/rpc"
	"github.com/logrange/rdb/pkg/cursor"
	"github.com/logrange/rdb/pkg/rql"
	"github.com/pkg/errors"
)

// connect URI schemes. Both behave the same way, but rdb+route signals that
// the address came from a discovery list, so such URIs could be passed to
// ConnectToFirstAvailable verbatim.
const (
	SchemeRdb      = "rdb"
	SchemeRdbRoute = "rdb+route"
)

type (
	// Driver is the entry point of the rdb client: it keeps the server
	// connection and produces cursors for queries. One driver may serve many
	// sequential queries, the connection underneath is guarded by the mutex.
	Driver struct {
		logger log4g.Logger
		lock   sync.Mutex
		clnt   *rpc.Client
		cfg    *Config
		closed bool
	}
)

// Connect dials the rdb server by the address addr, which could be the plain
// "host:port" form or the URI one - "rdb://host:port[?opts]" or
// "rdb+route://host:port[?opts]". The URI options override the config: the
// option names are the Config and the transport.Config field names, e.g.
// "rdb://10.0.0.3:9988?TlsEnabled=true&BatchSize=500".
//
// nil cfg means NewDefaultConfig(). The caller's cfg is never modified, the
// driver works on its deep copy.
//
// The connection is established eagerly, including the hello exchange. A
// connectivity failure is reported as ServiceUnavailableError, the credentials
// rejection as rpc.ErrAuthRejected.
func Connect(addr string, creds api.Creds, cfg *Config) (*Driver, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	} else {
		cfg = cfg.Copy()
		if cfg.Transport == nil {
			cfg.Transport = NewDefaultConfig().Transport
		}
	}

	if err := applyAddr(cfg, addr); err != nil {
		return nil, err
	}
	if err := cfg.Check(); err != nil {
		return nil, errors.Wrapf(err, "could not connect to %q", addr)
	}

	clnt, err := rpc.NewClient(*cfg.Transport, creds)
	if err != nil {
		if errors.Cause(err) == rpc.ErrAuthRejected {
			return nil, err
		}
		return nil, newServiceUnavailableError("could not connect to %q: %s", cfg.Transport.ListenAddr, err)
	}

	d := new(Driver)
	d.logger = log4g.GetLogger("rdb").WithId("{" + cfg.Transport.ListenAddr + "}").(log4g.Logger)
	d.clnt = clnt
	d.cfg = cfg
	d.logger.Info("connected, server version is ", clnt.ServerVersion())
	return d, nil
}

// ConnectToFirstAvailable walks the addresses in their order and returns the
// driver for the first one which accepts the connection. An address is skipped
// when its connect fails with a connectivity error; any other failure (the
// rejected credentials for instance) stops the walk immediately, cause trying
// the next server would not cure it. When every address is skipped, the result
// is the ServiceUnavailableError.
func ConnectToFirstAvailable(addrs []string, creds api.Creds, cfg *Config) (*Driver, error) {
	logger := log4g.GetLogger("rdb")
	for _, addr := range addrs {
		d, err := Connect(addr, creds, cfg)
		if err == nil {
			return d, nil
		}
		if !IsServiceUnavailable(err) {
			return nil, err
		}
		logger.Warn("could not connect to ", addr, ", will try the next address. err=", err)
	}
	return nil, newServiceUnavailableError("failed to discover an available server, tried %d address(es)", len(addrs))
}

// Query runs the RQL query and returns the cursor over its result. The query
// is parsed locally first, so a malformed query fails here without a server
// round-trip. The LIMIT clause, if present, caps the server-side stream as
// well, the server doesn't produce records behind it.
func (d *Driver) Query(ctx context.Context, query string) (*cursor.Cursor, error) {
	clnt, err := d.client()
	if err != nil {
		return nil, err
	}

	sel, err := rql.Parse(query)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse the query %q", query)
	}

	req := &api.QueryRequest{Query: query, Batch: d.cfg.BatchSize}
	if sel.Limit != nil {
		req.Limit = int(*sel.Limit)
	}

	qs, err := rpc.OpenQueryStream(ctx, clnt, req)
	if err != nil {
		return nil, err
	}
	return cursor.New(qs.Keys(), qs, qs.Summary()), nil
}

// Append writes the records into the source. All the records must have the
// same keys, and if the source already exists, the keys must match the keys of
// its very first write. The returned error reports a delivery problem, the
// server verdict, a rejection of the batch included, comes in the WriteResult.
func (d *Driver) Append(ctx context.Context, source string, recs []*api.Record) (*api.WriteResult, error) {
	clnt, err := d.client()
	if err != nil {
		return nil, err
	}

	res := new(api.WriteResult)
	if err = clnt.Write(ctx, source, recs, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ServerVersion returns the version the server reported in the hello exchange
func (d *Driver) ServerVersion() string {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return ""
	}
	return d.clnt.ServerVersion()
}

// Close closes the server connection. The driver is not usable after that,
// and the second Close is a caller bug reported by ErrClosed.
func (d *Driver) Close() error {
	d.lock.Lock()
	if d.closed {
		d.lock.Unlock()
		return ErrClosed
	}
	d.closed = true
	clnt := d.clnt
	d.clnt = nil
	d.lock.Unlock()

	d.logger.Info("closed")
	return clnt.Close()
}

func (d *Driver) client() (*rpc.Client, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	return d.clnt, nil
}

// applyAddr puts the address into the config, decoding the URI options when
// the address comes in the URI form
func applyAddr(cfg *Config, addr string) error {
	if addr == "" {
		return nil
	}
	if !strings.Contains(addr, "://") {
		cfg.Transport.ListenAddr = addr
		return nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return errors.Wrapf(err, "could not parse the address %q", addr)
	}
	if u.Scheme != SchemeRdb && u.Scheme != SchemeRdbRoute {
		return errors.Errorf("unknown scheme %q in the address %q, expecting %q or %q",
			u.Scheme, addr, SchemeRdb, SchemeRdbRoute)
	}
	if u.Host == "" {
		return errors.Errorf("no host in the address %q", addr)
	}

	cfg.Transport.ListenAddr = u.Host
	return applyURIOpts(cfg, u.Query())
}
