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

// Package embed runs the rdb server in the caller's process. The server
// keeps everything in memory, so it serves tests, examples and local
// experimentation rather than production setups.
package embed

import (
	"context"
	"sync"

	"github.com/jrivets/log4g"
	"github.com/logrange/linker"
	"github.com/logrange/range/pkg/utils/bytes"
	"github.com/logrange/rdb/api/rpc"
	"github.com/logrange/rdb/pkg/store"
	"github.com/pkg/errors"
)

// Server is the handle of a started embedded server. It must be stopped by
// Shutdown() when it is not needed anymore.
type Server struct {
	logger log4g.Logger
	inj    *linker.Injector
	rs     *rpc.Server
	cancel context.CancelFunc

	lock   sync.Mutex
	closed bool
}

// Start assembles the server components using the configuration provided and
// runs them. nil cfg means the default configuration.
func Start(cfg *Config) (srv *Server, err error) {
	c := GetDefaultConfig()
	c.Apply(cfg)
	if err = c.Check(); err != nil {
		return nil, err
	}

	logger := log4g.GetLogger("rdb.embed")
	logger.Info("starting the server with config ", c)

	ctx, cancel := context.WithCancel(context.Background())
	rs := rpc.NewServer()

	inj := linker.New()
	inj.SetLogger(log4g.GetLogger("rdb.embed.injector"))
	inj.Register(
		linker.Component{Name: "publicRpcTransport", Value: *c.Transport},
		linker.Component{Name: "serverAuth", Value: c.Auth},
		linker.Component{Name: "mainCtx", Value: ctx},
		linker.Component{Name: "", Value: new(bytes.Pool)},
		linker.Component{Name: "", Value: store.NewStore()},
		linker.Component{Name: "", Value: store.NewStreams()},
		linker.Component{Name: "", Value: rpc.NewServerIngestor()},
		linker.Component{Name: "", Value: rpc.NewServerQuerier()},
		linker.Component{Name: "", Value: rs},
	)

	// the injector fails fast, so the assembling problems (a busy port for
	// instance) come out as panics and must be turned back into errors here
	defer func() {
		if r := recover(); r != nil {
			cancel()
			srv = nil
			err = errors.Errorf("could not start the server: %v", r)
		}
	}()
	inj.Init(ctx)

	logger.Info("started, listening on ", rs.Addr())
	return &Server{logger: logger, inj: inj, rs: rs, cancel: cancel}, nil
}

// Addr returns the address the server listens on. It differs from the
// configured one when the configured port is 0.
func (s *Server) Addr() string {
	return s.rs.Addr()
}

// Shutdown stops the server components in the reverse order of their
// initialization. The repeated call does nothing.
func (s *Server) Shutdown() {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return
	}
	s.closed = true
	s.lock.Unlock()

	s.logger.Info("shutting down")
	s.cancel()
	s.inj.Shutdown()
}
