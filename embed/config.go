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

package embed

import (
	"encoding/json"
	"fmt"
	"io/ioutil"

	"github.com/logrange/range/pkg/transport"
	"github.com/logrange/rdb/api"
	"github.com/pkg/errors"
)

// Config struct defines the embedded server settings
type Config struct {
	// Transport defines the server listener settings. The port 0 is
	// supported, the actually bound address is reported by Server.Addr()
	Transport *transport.Config

	// Auth contains the credentials every client must provide within the
	// handshake. The empty value means any client is accepted.
	Auth api.Creds
}

// GetDefaultConfig returns the default embedded server config
func GetDefaultConfig() *Config {
	c := new(Config)
	c.Transport = &transport.Config{
		ListenAddr: "127.0.0.1:9988",
	}
	return c
}

// LoadCfgFromFile reads the Config from the JSON file by the path provided
func LoadCfgFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	err = json.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Apply overrides c's properties by non-default values from cfg
func (c *Config) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Transport != nil {
		c.Transport.Apply(cfg.Transport)
	}
	if cfg.Auth.User != "" {
		c.Auth = cfg.Auth
	}
}

// Check tests the config consistency, it returns an error if the server
// cannot be started with the settings provided
func (c *Config) Check() error {
	if c.Transport == nil {
		return errors.Errorf("invalid config: Transport must be provided")
	}
	if err := c.Transport.Check(); err != nil {
		return errors.Wrapf(err, "invalid Transport config")
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprint("{Transport: ", c.Transport, ", Auth: ", c.Auth, "}")
}
