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

package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ebay/sparqld/config"
	"github.com/ebay/sparqld/store/memstore"
	"github.com/ebay/sparqld/store/txlock"
	"github.com/ebay/sparqld/util/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routeRequest looks up the dataset and routes the request, as the
// dispatcher does.
func routeRequest(t *testing.T, reg *Registry, r *http.Request) (*Action, error) {
	t.Helper()
	ds, trailing, ok := reg.Lookup(r.URL.Path)
	require.True(t, ok, "no dataset for %v", r.URL.Path)
	a := newAction(&statusRecorder{ResponseWriter: httptest.NewRecorder()}, r, ds)
	a.Trailing = trailing
	return a, route(a)
}

func Test_route(t *testing.T) {
	ds := NewDatasetRef("/ds", txlock.New("ds", memstore.New()), nil, []config.Service{
		{Kind: config.KindQuery, Endpoints: []string{"sparql", "query"}},
		{Kind: config.KindUpdate, Endpoints: []string{"update"}},
		{Kind: config.KindUpload, Endpoints: []string{"upload"}},
		{Kind: config.KindGSPRead, Endpoints: []string{"get"}},
		{Kind: config.KindGSPRW, Endpoints: []string{"data"}},
		{Kind: config.KindQuery, Endpoints: []string{"old"}, Inactive: true},
	})
	reg, err := NewRegistry(ds)
	require.NoError(t, err)

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		op          Operation
		service     string
		status      int
	}{
		{name: "queryService", method: "GET", target: "/ds/sparql?query=ASK{}", op: OpQuery, service: config.KindQuery},
		{name: "queryServiceAlias", method: "GET", target: "/ds/query?query=ASK{}", op: OpQuery, service: config.KindQuery},
		{name: "queryServiceWrongMethod", method: "PUT", target: "/ds/sparql", status: 405},
		{name: "updateService", method: "POST", target: "/ds/update", contentType: "application/sparql-update",
			op: OpUpdate, service: config.KindUpdate},
		{name: "updateServiceGET", method: "GET", target: "/ds/update?update=CLEAR+ALL", status: 405},
		{name: "uploadService", method: "POST", target: "/ds/upload", contentType: "multipart/form-data; boundary=x",
			op: OpUpload, service: config.KindUpload},
		{name: "gspReadService", method: "GET", target: "/ds/get?default", op: OpGSPRead, service: config.KindGSPRead},
		{name: "gspReadServicePUT", method: "PUT", target: "/ds/get?default", status: 405},
		{name: "gspRWServiceGET", method: "GET", target: "/ds/data?default", op: OpGSPRead, service: config.KindGSPRW},
		{name: "gspRWServiceHEAD", method: "HEAD", target: "/ds/data?default", op: OpGSPRead, service: config.KindGSPRW},
		{name: "gspRWServicePUT", method: "PUT", target: "/ds/data?default", op: OpGSPWrite, service: config.KindGSPRW},
		{name: "gspRWServiceDELETE", method: "DELETE", target: "/ds/data?graph=g", op: OpGSPWrite, service: config.KindGSPRW},
		{name: "gspRWServicePATCH", method: "PATCH", target: "/ds/data?graph=g", status: 405},
		{name: "serviceBeatsDirectNaming", method: "PUT", target: "/ds/sparql", status: 405},
		{name: "serviceBeatsDirectNamingGET", method: "GET", target: "/ds/sparql?query=ASK{}", op: OpQuery, service: config.KindQuery},
		{name: "inactiveService", method: "GET", target: "/ds/old?query=ASK{}", status: 403},

		{name: "queryParam", method: "GET", target: "/ds?query=ASK{}", op: OpQuery},
		{name: "queryBody", method: "POST", target: "/ds", contentType: "application/sparql-query", op: OpQuery},
		{name: "queryForm", method: "POST", target: "/ds", contentType: "application/x-www-form-urlencoded",
			body: "query=ASK%7B%7D", op: OpQuery},
		{name: "queryParamPUT", method: "PUT", target: "/ds?query=ASK{}", status: 405},
		{name: "updateParam", method: "POST", target: "/ds?update=CLEAR+ALL", op: OpUpdate},
		{name: "updateRequestAlias", method: "POST", target: "/ds", contentType: "application/x-www-form-urlencoded",
			body: "request=CLEAR+ALL", op: OpUpdate},
		{name: "updateBody", method: "POST", target: "/ds", contentType: "application/sparql-update", op: OpUpdate},
		{name: "updateParamGET", method: "GET", target: "/ds?update=CLEAR+ALL", status: 405},
		{name: "gspDefault", method: "GET", target: "/ds?default", op: OpGSPRead},
		{name: "gspGraph", method: "PUT", target: "/ds?graph=http://ex/g", contentType: "application/n-triples", op: OpGSPWrite},
		{name: "gspPOST", method: "POST", target: "/ds?graph=g", contentType: "text/plain", op: OpGSPWrite},
		{name: "upload", method: "POST", target: "/ds", contentType: "multipart/form-data; boundary=x", op: OpUpload},
		{name: "uploadWithGraph", method: "POST", target: "/ds?graph=g", contentType: "multipart/form-data; boundary=x", op: OpUpload},
		{name: "ambiguousQueryUpdate", method: "POST", target: "/ds?query=ASK{}&update=CLEAR+ALL", status: 400},
		{name: "ambiguousQueryGraph", method: "GET", target: "/ds?query=ASK{}&graph=g", status: 400},
		{name: "ambiguousBodyParam", method: "POST", target: "/ds?graph=g", contentType: "application/sparql-update", status: 400},

		{name: "quadsGET", method: "GET", target: "/ds", op: OpQuadsRead},
		{name: "quadsHEAD", method: "HEAD", target: "/ds/", op: OpQuadsRead},
		{name: "quadsPOST", method: "POST", target: "/ds", contentType: "application/n-quads", op: OpQuadsWrite},
		{name: "quadsPUT", method: "PUT", target: "/ds", contentType: "application/n-quads", op: OpQuadsWrite},
		{name: "quadsDELETE", method: "DELETE", target: "/ds", status: 405},

		{name: "directGET", method: "GET", target: "/ds/graphs/g1", op: OpGSPRead},
		{name: "directPUT", method: "PUT", target: "/ds/graphs/g1", contentType: "text/plain", op: OpGSPWrite},
		{name: "directDELETE", method: "DELETE", target: "/ds/graphs/g1", op: OpGSPWrite},
		{name: "directPATCH", method: "PATCH", target: "/ds/graphs/g1", status: 405},
		{name: "badQueryString", method: "GET", target: "/ds?query=%zz", status: 400},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := httptest.NewRequest(test.method, test.target, strings.NewReader(test.body))
			if test.contentType != "" {
				r.Header.Set("Content-Type", test.contentType)
			}
			a, err := routeRequest(t, reg, r)
			if test.status != 0 {
				require.Error(t, err)
				assert.Equal(t, test.status, web.StatusOf(err), "%v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.op, a.Op)
			if test.service == "" {
				assert.Nil(t, a.Service)
			} else if assert.NotNil(t, a.Service) {
				assert.Equal(t, test.service, a.Service.Kind)
			}
		})
	}
}

func Test_routeMethodNotAllowedSetsAllow(t *testing.T) {
	reg, err := NewRegistry(newRef("/ds"))
	require.NoError(t, err)
	_, err = routeRequest(t, reg, httptest.NewRequest("GET", "/ds/update", nil))
	apiErr, ok := web.AsAPIError(err)
	require.True(t, ok)
	w := httptest.NewRecorder()
	apiErr.HTTPWrite(w)
	assert.Equal(t, 405, w.Code)
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Allow"))
}

func Test_requestParamsAliases(t *testing.T) {
	r := httptest.NewRequest("POST", "/ds?format=json&request=a",
		strings.NewReader("request=b&update=c"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	params, err := requestParams(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"json"}, params["output"])
	assert.ElementsMatch(t, []string{"a", "b", "c"}, params["update"])
	_, ok := params["request"]
	assert.False(t, ok)
	_, ok = params["format"]
	assert.False(t, ok)
}

func Test_allowedMethods(t *testing.T) {
	reg, err := NewRegistry(newRef("/ds"))
	require.NoError(t, err)
	tests := []struct {
		target   string
		expected string
	}{
		{"/ds/sparql", "GET, POST, OPTIONS"},
		{"/ds/update", "POST, OPTIONS"},
		{"/ds/get", "GET, HEAD, OPTIONS"},
		{"/ds/data", "GET, HEAD, PUT, POST, DELETE, OPTIONS"},
		{"/ds", "GET, HEAD, POST, PUT, OPTIONS"},
		{"/ds?default", "GET, HEAD, PUT, POST, DELETE, OPTIONS"},
	}
	for _, test := range tests {
		t.Run(test.target, func(t *testing.T) {
			a, err := routeRequest(t, reg, httptest.NewRequest("OPTIONS", test.target, nil))
			require.NoError(t, err)
			assert.Equal(t, test.expected, strings.Join(allowedMethods(a), ", "))
		})
	}
}
