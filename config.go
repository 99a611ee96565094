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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/url"

	"github.com/logrange/range/pkg/transport"
	"github.com/mitchellh/mapstructure"
	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"
)

type (
	// Config struct contains the settings of the driver connection
	Config struct {
		// Transport contains the TCP and TLS settings of the server connection.
		// Its ListenAddr is overridden by the address given to Connect, when
		// the address is not empty.
		Transport *transport.Config

		// BatchSize defines the maximum number of records one page of a query
		// result may carry. 0 means the server default.
		BatchSize int
	}

	// uriOpts are the options which could be passed within the query part of
	// the connect URI, rdb://host:port?TlsEnabled=true for instance. The values
	// are decoded weakly, so booleans and numbers come as strings from the URI.
	uriOpts struct {
		transport.Config `mapstructure:",squash"`
		BatchSize        int
	}
)

//===================== config =====================

func NewDefaultConfig() *Config {
	cfg := new(Config)
	cfg.Transport = &transport.Config{}
	cfg.Transport.ListenAddr = "127.0.0.1:9988"
	return cfg
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

func (c *Config) Apply(other *Config) {
	if other == nil {
		return
	}
	if other.Transport != nil {
		c.Transport.Apply(other.Transport)
	}
	if other.BatchSize > 0 {
		c.BatchSize = other.BatchSize
	}
}

func (c *Config) Check() error {
	if c.Transport == nil {
		return fmt.Errorf("invalid config; Transport=%v, must be non-nil", c.Transport)
	}
	if err := c.Transport.Check(); err != nil {
		return err
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("invalid config; BatchSize=%d, must be non-negative", c.BatchSize)
	}
	return nil
}

// Copy returns the deep copy of the config, so the result could be modified
// with no effect on c
func (c *Config) Copy() *Config {
	return deepcopy.Copy(c).(*Config)
}

// applyURIOpts overrides the config by the options from the query part of the
// connect URI. Unknown options are reported as an error, not skipped silently.
func applyURIOpts(cfg *Config, vals url.Values) error {
	if len(vals) == 0 {
		return nil
	}

	m := make(map[string]interface{}, len(vals))
	for k, v := range vals {
		if len(v) > 0 {
			m[k] = v[0]
		}
	}

	opts := &uriOpts{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           opts,
	})
	if err != nil {
		return err
	}
	if err = dec.Decode(m); err != nil {
		return errors.Wrapf(err, "could not apply the URI options %v", vals.Encode())
	}

	cfg.Transport.Apply(&opts.Config)
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}
	return nil
}
