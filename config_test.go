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
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/logrange/range/pkg/transport"
	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.NoError(t, cfg.Check())
	assert.Equal(t, "127.0.0.1:9988", cfg.Transport.ListenAddr)
	assert.Equal(t, 0, cfg.BatchSize)
}

func TestConfigApply(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Apply(nil)
	assert.Equal(t, "127.0.0.1:9988", cfg.Transport.ListenAddr)

	cfg.Apply(&Config{BatchSize: 500, Transport: &transport.Config{ListenAddr: "10.0.0.3:1234"}})
	assert.Equal(t, "10.0.0.3:1234", cfg.Transport.ListenAddr)
	assert.Equal(t, 500, cfg.BatchSize)

	// zero values must not override
	cfg.Apply(&Config{})
	assert.Equal(t, "10.0.0.3:1234", cfg.Transport.ListenAddr)
	assert.Equal(t, 500, cfg.BatchSize)
}

func TestConfigCheck(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Check())

	cfg = NewDefaultConfig()
	cfg.BatchSize = -1
	assert.Error(t, cfg.Check())

	cfg = NewDefaultConfig()
	cfg.Transport.ListenAddr = ""
	assert.Error(t, cfg.Check())
}

func TestConfigCopy(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.BatchSize = 100

	cp := cfg.Copy()
	assert.Equal(t, cfg, cp)

	cp.Transport.ListenAddr = "10.0.0.3:1234"
	cp.BatchSize = 200
	assert.Equal(t, "127.0.0.1:9988", cfg.Transport.ListenAddr)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestLoadCfgFromFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "rdbconfigtest")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	fn := filepath.Join(dir, "rdb.json")
	err = ioutil.WriteFile(fn, []byte(`{"Transport": {"ListenAddr": "10.0.0.3:1234"}, "BatchSize": 42}`), 0644)
	assert.NoError(t, err)

	cfg, err := LoadCfgFromFile(fn)
	assert.NoError(t, err)
	assert.Equal(t, "10.0.0.3:1234", cfg.Transport.ListenAddr)
	assert.Equal(t, 42, cfg.BatchSize)

	_, err = LoadCfgFromFile(filepath.Join(dir, "notexist.json"))
	assert.Error(t, err)
}

func TestApplyURIOpts(t *testing.T) {
	cfg := NewDefaultConfig()
	vals, err := url.ParseQuery("TlsEnabled=true&BatchSize=500&TlsCertFile=/tmp/cert.pem")
	assert.NoError(t, err)

	assert.NoError(t, applyURIOpts(cfg, vals))
	assert.NotNil(t, cfg.Transport.TlsEnabled)
	assert.True(t, *cfg.Transport.TlsEnabled)
	assert.Equal(t, "/tmp/cert.pem", cfg.Transport.TlsCertFile)
	assert.Equal(t, 500, cfg.BatchSize)

	// the option names are case-insensitive
	cfg = NewDefaultConfig()
	vals, _ = url.ParseQuery("batchsize=13")
	assert.NoError(t, applyURIOpts(cfg, vals))
	assert.Equal(t, 13, cfg.BatchSize)

	// unknown options must be rejected, not skipped
	vals, _ = url.ParseQuery("NoSuchOption=1")
	assert.Error(t, applyURIOpts(cfg, vals))

	// a malformed value must be rejected as well
	vals, _ = url.ParseQuery("BatchSize=abc")
	assert.Error(t, applyURIOpts(cfg, vals))
}
