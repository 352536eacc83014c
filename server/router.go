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
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/ebay/sparqld/config"
)

// Request parameters that select an operation.
const (
	paramQuery  = "query"
	paramUpdate = "update"
)

// paramAliases maps legacy parameter names onto the names the handlers use.
var paramAliases = map[string]string{
	"request": paramUpdate,
	"format":  paramOutput,
}

// Request content types that select an operation.
const (
	contentTypeSPARQLQuery  = "application/sparql-query"
	contentTypeSPARQLUpdate = "application/sparql-update"
	contentTypeForm         = "application/x-www-form-urlencoded"
	contentTypeMultipart    = "multipart/form-data"
)

var (
	methodsQuery    = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	methodsPostOnly = []string{http.MethodPost, http.MethodOptions}
	methodsGSPRead  = []string{http.MethodGet, http.MethodHead, http.MethodOptions}
	methodsGSPRW    = []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPost,
		http.MethodDelete, http.MethodOptions}
	methodsQuads = []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodOptions}
)

// kindMethods lists the methods each kind of named service accepts.
var kindMethods = map[string][]string{
	config.KindQuery:   methodsQuery,
	config.KindUpdate:  methodsPostOnly,
	config.KindUpload:  methodsPostOnly,
	config.KindGSPRead: methodsGSPRead,
	config.KindGSPRW:   methodsGSPRW,
}

// route works out which operation the request performs on a.Dataset, setting
// a.Params, a.Service and a.Op. It returns a typed error for requests that
// can't be routed. No transaction is open yet.
func route(a *Action) error {
	params, err := requestParams(a.Request)
	if err != nil {
		return err
	}
	a.Params = params
	method := a.Request.Method

	// A named service takes precedence over a graph named by the same path.
	if a.Trailing != "" {
		if svc := a.Dataset.ServiceByEndpoint(a.Trailing); svc != nil {
			a.Service = svc
			if !svc.Active {
				return errForbidden("service %s/%s is not active", a.Dataset.Name, a.Trailing)
			}
			allowed := kindMethods[svc.Kind]
			if !containsString(allowed, method) {
				return errMethodNotAllowed(method, allowed)
			}
			a.Op = kindOperation(svc.Kind, method)
			return nil
		}
	}

	classes := operationClasses(a.Request, params)
	switch len(classes) {
	case 0:
		if a.Trailing == "" {
			return routeByMethod(a, OpQuadsRead, OpQuadsWrite, methodsQuads)
		}
		return routeByMethod(a, OpGSPRead, OpGSPWrite, methodsGSPRW)
	case 1:
	default:
		names := make([]string, len(classes))
		for i, op := range classes {
			names[i] = op.String()
		}
		return errBadRequest("ambiguous request: it looks like more than one of %s",
			strings.Join(names, ", "))
	}
	switch classes[0] {
	case OpQuery:
		return routeTo(a, OpQuery, methodsQuery)
	case OpUpdate:
		return routeTo(a, OpUpdate, methodsPostOnly)
	case OpUpload:
		return routeTo(a, OpUpload, methodsPostOnly)
	default:
		return routeByMethod(a, OpGSPRead, OpGSPWrite, methodsGSPRW)
	}
}

func routeTo(a *Action, op Operation, allowed []string) error {
	if !containsString(allowed, a.Request.Method) {
		return errMethodNotAllowed(a.Request.Method, allowed)
	}
	a.Op = op
	return nil
}

// routeByMethod picks the read operation for safe methods and the write
// operation for the others.
func routeByMethod(a *Action, read, write Operation, allowed []string) error {
	if !containsString(allowed, a.Request.Method) {
		return errMethodNotAllowed(a.Request.Method, allowed)
	}
	if isReadMethod(a.Request.Method) {
		a.Op = read
	} else {
		a.Op = write
	}
	return nil
}

func isReadMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func kindOperation(kind, method string) Operation {
	switch kind {
	case config.KindQuery:
		return OpQuery
	case config.KindUpdate:
		return OpUpdate
	case config.KindUpload:
		return OpUpload
	case config.KindGSPRead:
		return OpGSPRead
	}
	if isReadMethod(method) {
		return OpGSPRead
	}
	return OpGSPWrite
}

// operationClasses returns every operation the request's parameters and
// content type point to, in a fixed order. GSP read and write are both
// reported as OpGSPRead.
func operationClasses(r *http.Request, params url.Values) []Operation {
	ct := requestMediaType(r)
	var res []Operation
	if _, ok := params[paramQuery]; ok || ct == contentTypeSPARQLQuery {
		res = append(res, OpQuery)
	}
	if _, ok := params[paramUpdate]; ok || ct == contentTypeSPARQLUpdate {
		res = append(res, OpUpdate)
	}
	_, hasGraph := params[paramGraph]
	_, hasDefault := params[paramDefault]
	if ct == contentTypeMultipart {
		// An upload may name its graph in the URL.
		res = append(res, OpUpload)
	} else if hasGraph || hasDefault {
		res = append(res, OpGSPRead)
	}
	return res
}

// requestMediaType returns the lower-case media type of the request body
// without parameters, or "" if there isn't one.
func requestMediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}

// requestParams returns the parameters of the query string and, for POSTed
// HTML forms, the body. Aliases are replaced by their current names.
func requestParams(r *http.Request) (url.Values, error) {
	var params url.Values
	if r.Method == http.MethodPost && requestMediaType(r) == contentTypeForm {
		if err := r.ParseForm(); err != nil {
			return nil, errBadRequest("unable to parse form: %v", err)
		}
		params = make(url.Values, len(r.Form))
		for k, v := range r.Form {
			params[k] = append([]string(nil), v...)
		}
	} else {
		var err error
		params, err = url.ParseQuery(r.URL.RawQuery)
		if err != nil {
			return nil, errBadRequest("unable to parse query string: %v", err)
		}
	}
	aliases := make([]string, 0, len(paramAliases))
	for alias := range paramAliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		if vals, ok := params[alias]; ok {
			name := paramAliases[alias]
			params[name] = append(params[name], vals...)
			delete(params, alias)
		}
	}
	return params, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// allowedMethods returns the methods valid for the action's operation, for
// OPTIONS responses.
func allowedMethods(a *Action) []string {
	if a.Service != nil {
		return kindMethods[a.Service.Kind]
	}
	switch a.Op {
	case OpQuery:
		return methodsQuery
	case OpUpdate, OpUpload:
		return methodsPostOnly
	case OpQuadsRead, OpQuadsWrite:
		return methodsQuads
	}
	return methodsGSPRW
}
