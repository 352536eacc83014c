// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okJSON = `{
	"httpAddress": ":3030",
	"datasets": [
		{"name": "/ds", "store": {"type": "memory"}, "queryTimeout": "10s"},
		{
			"name": "/books",
			"store": {"type": "bolt", "path": "/tmp/books.db"},
			"policy": "readonly",
			"services": [{"kind": "query", "endpoints": ["sparql"]}]
		}
	]
}`

const okTOML = `
httpAddress = ":3030"

[changeLog]
type = "kafka"
brokers = ["localhost:9092"]

[[datasets]]
name = "/ds"
maxQueryTimeout = "1m"

[datasets.store]
type = "memory"

[[datasets.services]]
kind = "gsp-rw"
endpoints = ["data"]
inactive = true
`

const okYAML = `
httpAddress: ":3030"
cors:
  allowedOrigins: ["*"]
datasets:
  - name: /ds
    store:
      type: memory
    queryTimeout: 5s
`

func Test_Load(t *testing.T) {
	dir, err := ioutil.TempDir("", "config-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	write := func(name, contents string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, ioutil.WriteFile(path, []byte(contents), 0644))
		return path
	}

	t.Run("file not found", func(t *testing.T) {
		_, err = Load(filepath.Join(dir, "404.json"))
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "404.json")
		}
	})

	t.Run("file contains garbage", func(t *testing.T) {
		_, err = Load(write("garbage.json", "koala"))
		if assert.Error(t, err) {
			assert.Regexp(t, `^error decoding JSON value in .*/garbage\.json: `, err.Error())
		}
	})

	t.Run("file contains null", func(t *testing.T) {
		_, err = Load(write("null.json", "null"))
		if assert.Error(t, err) {
			assert.Regexp(t, `^loading .*/null\.json resulted in nil config$`, err.Error())
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		_, err = Load(write("unknown.json", `{
			"roflcopter": true
		}`))
		if assert.Error(t, err) {
			assert.Regexp(t, `^error decoding JSON value in .*/unknown\.json: `, err.Error())
		}
	})

	t.Run("more", func(t *testing.T) {
		_, err = Load(write("more.json", "{}{}"))
		if assert.Error(t, err) {
			assert.Regexp(t, `^found unexpected data after config in .*/more\.json$`, err.Error())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		_, err = Load(write("invalid.json", `{"httpAddress": ":3030"}`))
		if assert.Error(t, err) {
			assert.Regexp(t, `^invalid config in .*/invalid\.json: at least one dataset is required$`,
				err.Error())
		}
	})

	t.Run("ok", func(t *testing.T) {
		cfg, err := Load(write("ok.json", okJSON))
		require.NoError(t, err)
		assert := assert.New(t)
		assert.Equal(":3030", cfg.HTTPAddress)
		require.Len(t, cfg.Datasets, 2)
		ds := cfg.Datasets[0]
		assert.Equal("/ds", ds.Name)
		assert.Equal(PolicyConfig, ds.Policy)
		assert.Equal(10*time.Second, ds.QueryTimeout.D())
		assert.Equal(DefaultServices(), ds.Services)
		books := cfg.Datasets[1]
		assert.Equal("bolt", books.Store.Type)
		assert.Equal("/tmp/books.db", books.Store.Path)
		assert.Equal(PolicyReadOnly, books.Policy)
		assert.Equal([]Service{{Kind: KindQuery, Endpoints: []string{"sparql"}}}, books.Services)
	})

	t.Run("toml", func(t *testing.T) {
		cfg, err := Load(write("ok.toml", okTOML))
		require.NoError(t, err)
		assert := assert.New(t)
		if assert.NotNil(cfg.ChangeLog) {
			assert.Equal("kafka", cfg.ChangeLog.Type)
			assert.Equal([]string{"localhost:9092"}, cfg.ChangeLog.Brokers)
		}
		require.Len(t, cfg.Datasets, 1)
		assert.Equal(time.Minute, cfg.Datasets[0].MaxQueryTimeout.D())
		assert.Equal([]Service{{Kind: KindGSPRW, Endpoints: []string{"data"}, Inactive: true}},
			cfg.Datasets[0].Services)
	})

	t.Run("toml unknown field", func(t *testing.T) {
		_, err = Load(write("unknown.toml", okTOML+"\nroflcopter = true\n"))
		if assert.Error(t, err) {
			assert.Regexp(t, `^error decoding TOML value in .*/unknown\.toml: unknown fields`, err.Error())
		}
	})

	t.Run("yaml", func(t *testing.T) {
		cfg, err := Load(write("ok.yaml", okYAML))
		require.NoError(t, err)
		assert := assert.New(t)
		if assert.NotNil(cfg.CORS) {
			assert.Equal([]string{"*"}, cfg.CORS.AllowedOrigins)
		}
		require.Len(t, cfg.Datasets, 1)
		assert.Equal(5*time.Second, cfg.Datasets[0].QueryTimeout.D())
	})

	t.Run("yaml unknown field", func(t *testing.T) {
		_, err = Load(write("unknown.yml", okYAML+"roflcopter: true\n"))
		if assert.Error(t, err) {
			assert.Regexp(t, `^error decoding YAML value in .*/unknown\.yml: `, err.Error())
		}
	})
}

func Test_Validate(t *testing.T) {
	memory := Store{Type: "memory"}
	tests := []struct {
		name   string
		cfg    Server
		expErr string
	}{
		{
			name:   "no address",
			cfg:    Server{Datasets: []Dataset{{Name: "/ds", Store: memory}}},
			expErr: "httpAddress is required",
		},
		{
			name: "bad name",
			cfg: Server{HTTPAddress: ":80", Datasets: []Dataset{
				{Name: "ds", Store: memory},
			}},
			expErr: `dataset "ds": name must start with '/' and must not end with '/'`,
		},
		{
			name: "trailing slash",
			cfg: Server{HTTPAddress: ":80", Datasets: []Dataset{
				{Name: "/ds/", Store: memory},
			}},
			expErr: `dataset "/ds/": name must start with '/' and must not end with '/'`,
		},
		{
			name: "duplicate",
			cfg: Server{HTTPAddress: ":80", Datasets: []Dataset{
				{Name: "/ds", Store: memory},
				{Name: "/ds", Store: memory},
			}},
			expErr: `dataset "/ds": defined more than once`,
		},
		{
			name: "bolt without path",
			cfg: Server{HTTPAddress: ":80", Datasets: []Dataset{
				{Name: "/ds", Store: Store{Type: "bolt"}},
			}},
			expErr: `dataset "/ds": store: path is required for bolt`,
		},
		{
			name: "bad policy",
			cfg: Server{HTTPAddress: ":80", Datasets: []Dataset{
				{Name: "/ds", Store: memory, Policy: "anything"},
			}},
			expErr: `dataset "/ds": unknown policy "anything"`,
		},
		{
			name: "timeout above max",
			cfg: Server{HTTPAddress: ":80", Datasets: []Dataset{
				{Name: "/ds", Store: memory,
					QueryTimeout:    Duration(time.Minute),
					MaxQueryTimeout: Duration(time.Second)},
			}},
			expErr: `dataset "/ds": queryTimeout must not exceed maxQueryTimeout`,
		},
		{
			name: "bad kind",
			cfg: Server{HTTPAddress: ":80", Datasets: []Dataset{
				{Name: "/ds", Store: memory, Services: []Service{
					{Kind: "sparql", Endpoints: []string{"sparql"}},
				}},
			}},
			expErr: `dataset "/ds": service: unknown kind "sparql"`,
		},
		{
			name: "shared endpoint",
			cfg: Server{HTTPAddress: ":80", Datasets: []Dataset{
				{Name: "/ds", Store: memory, Services: []Service{
					{Kind: KindQuery, Endpoints: []string{"sparql"}},
					{Kind: KindUpdate, Endpoints: []string{"sparql"}},
				}},
			}},
			expErr: `dataset "/ds": service update: endpoint "sparql" is used more than once`,
		},
		{
			name: "kafka without brokers",
			cfg: Server{HTTPAddress: ":80", ChangeLog: &ChangeLog{Type: "kafka"},
				Datasets: []Dataset{{Name: "/ds", Store: memory}}},
			expErr: `changeLog: brokers are required for kafka`,
		},
		{
			name: "tracing without collector",
			cfg: Server{HTTPAddress: ":80", Tracing: &Tracing{Type: "jaeger"},
				Datasets: []Dataset{{Name: "/ds", Store: memory}}},
			expErr: `tracing: collector is required`,
		},
		{
			name: "root dataset",
			cfg: Server{HTTPAddress: ":80", Datasets: []Dataset{
				{Name: "/", Store: memory},
			}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.cfg.Validate()
			if test.expErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, test.expErr)
			}
		})
	}
}

func Test_Write(t *testing.T) {
	dir, err := ioutil.TempDir("", "config-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	// Happy path, and it loads back.
	cfg := &Server{
		HTTPAddress: ":3030",
		Datasets: []Dataset{{
			Name:         "/ds",
			Store:        Store{Type: "memory"},
			QueryTimeout: Duration(90 * time.Second),
		}},
	}
	err = Write(cfg, filepath.Join(dir, "ok.json"))
	assert.NoError(t, err)
	loaded, err := Load(filepath.Join(dir, "ok.json"))
	if assert.NoError(t, err) {
		assert.Equal(t, 90*time.Second, loaded.Datasets[0].QueryTimeout.D())
	}

	// Simulate an error from encoder.Encode().
	marshalJSONErr = errors.New("ants in pants")
	err = Write(&Server{Tracing: &Tracing{}}, filepath.Join(dir, "ants.json"))
	marshalJSONErr = nil
	if assert.Error(t, err) {
		assert.Regexp(t, `^failed to write .*/ants\.json: .*ants in pants`,
			err.Error())
	}

	// Errors from os.Create already include the filename.
	err = os.MkdirAll(filepath.Join(dir, "subdir"), 0755)
	require.NoError(t, err)
	err = Write(&Server{}, filepath.Join(dir, "subdir"))
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "subdir")
	}
}

// Controls the returned error of Tracing.MarshalJSON.
var marshalJSONErr error

// This is a custom marshaller for Tracing (used only in unit tests). It
// normally encodes itself successfully, but if 'marshalJSONErr' is non-nil, it
// returns this error instead.
func (t Tracing) MarshalJSON() ([]byte, error) {
	if marshalJSONErr != nil {
		return nil, marshalJSONErr
	}
	return json.Marshal(struct {
		Type       string  `json:"type"`
		Collector  string  `json:"collector"`
		SampleRate float64 `json:"sampleRate,omitempty"`
	}{
		Type:       t.Type,
		Collector:  t.Collector,
		SampleRate: t.SampleRate,
	})
}
