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
	"net"

	"github.com/jrivets/log4g"
	rrpc "github.com/logrange/range/pkg/rpc"
	"github.com/logrange/range/pkg/records"
	"github.com/logrange/range/pkg/transport"
	"github.com/logrange/rdb/api"
	"github.com/pkg/errors"
)

type (
	// Server accepts client connections on the transport listener and serves
	// the rdb rpc endpoints on them
	Server struct {
		ConnConfig  transport.Config `inject:"publicRpcTransport"`
		Auth        api.Creds        `inject:"serverAuth"`
		SrvQuerier  *ServerQuerier   `inject:""`
		SrvIngestor *ServerIngestor  `inject:""`

		rs     rrpc.Server
		ln     net.Listener
		logger log4g.Logger
	}
)

func NewServer() *Server {
	return new(Server)
}

// Init is part of linker.Initializer
func (s *Server) Init(ctx context.Context) error {
	l, err := transport.NewServerListener(s.ConnConfig)
	if err != nil {
		return errors.Wrapf(err, "could not create transport listener for %s", s.ConnConfig)
	}
	s.logger = log4g.GetLogger("rpc.server").WithId("{" + l.Addr().String() + "}").(log4g.Logger)
	s.rs = rrpc.NewServer()
	s.ln = l

	// register endpoints
	s.rs.Register(cRpcEpHello, s.hello)
	s.rs.Register(cRpcEpQuerierQuery, s.SrvQuerier.query)
	s.rs.Register(cRpcEpQuerierRelease, s.SrvQuerier.release)
	s.rs.Register(cRpcEpIngestorWrite, s.SrvIngestor.write)

	go s.listen()
	return nil
}

// Shutdown is part of linker.Shutdowner
func (s *Server) Shutdown() {
	_ = s.ln.Close()
	_ = s.rs.Close()
}

// Addr returns the address the server actually listens on. It differs from
// ConnConfig.ListenAddr when the configured port is 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// hello serves the handshake endpoint: it checks the credentials when the
// server requires them and reports the server api version back
func (s *Server) hello(reqId int32, reqBody []byte, sc *rrpc.ServerConn) {
	var hr helloRequest
	_, err := unmarshalHelloRequest(reqBody, &hr, false)
	if err != nil {
		s.logger.Warn("hello(): received a request with unmarshalable body err=", err)
		sc.SendResponse(reqId, err, cEmptyResponse)
		return
	}

	if s.Auth.User != "" && (hr.user != s.Auth.User || hr.secret != s.Auth.Secret) {
		s.logger.Warn("hello(): rejected credentials for user=", hr.user)
		sc.SendResponse(reqId, ErrAuthRejected, cEmptyResponse)
		return
	}

	s.logger.Info("hello(): accepted client version=", hr.version, ", user=", hr.user)
	sc.SendResponse(reqId, nil, records.Record(api.Version))
}

func (s *Server) listen() {
	s.logger.Info("listen(): start")
	defer s.logger.Info("listen(): stop")
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			s.logger.Warn("listen(): got the error when listen socket err=", err)
			return
		}

		err = s.rs.Serve(conn.RemoteAddr().String(), conn)
		if err != nil {
			s.logger.Warn("listen(): could not create new server connection for ", conn.RemoteAddr(), " err=", err)
			_ = conn.Close()
		}
	}
}
