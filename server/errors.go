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
	"strings"

	"github.com/ebay/sparqld/util/web"
)

// The handlers report client-visible failures as *web.APIError values built
// by these helpers. Any other error reaching the dispatch boundary is a 500.

func errBadRequest(format string, args ...interface{}) error {
	return web.NewError(http.StatusBadRequest, format, args...)
}

func errForbidden(format string, args ...interface{}) error {
	return web.NewError(http.StatusForbidden, format, args...)
}

func errNotFound(format string, args ...interface{}) error {
	return web.NewError(http.StatusNotFound, format, args...)
}

func errMethodNotAllowed(method string, allowed []string) error {
	return web.NewError(http.StatusMethodNotAllowed, "method %s is not allowed here", method).(*web.APIError).
		WithHeader("Allow", strings.Join(allowed, ", "))
}

func errUnsupportedMediaType(format string, args ...interface{}) error {
	return web.NewError(http.StatusUnsupportedMediaType, format, args...)
}

func errUnavailable(format string, args ...interface{}) error {
	return web.NewError(http.StatusServiceUnavailable, format, args...)
}
