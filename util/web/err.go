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

package web

import (
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// APIError defines an error that is destined to be a HTTP response.
// It includes both a textual message and HTTP Status Code to use.
// Construct an APIError using NewError.
type APIError struct {
	statusCode int
	message    string
	// Extra response headers, like Allow for a 405.
	header http.Header
}

// NewError constructs a new APIError with the supplied HTTP Status Code and
// formats the supplied msg & arguments.
func NewError(statusCode int, formatMsg string, formatParams ...interface{}) error {
	return &APIError{
		statusCode: statusCode,
		message:    fmt.Sprintf(formatMsg, formatParams...),
	}
}

// WithHeader returns a copy of the error that also sets the response header
// 'key' to 'value' when written.
func (a *APIError) WithHeader(key, value string) *APIError {
	res := *a
	res.header = make(http.Header, len(a.header)+1)
	for k, v := range a.header {
		res.header[k] = v
	}
	res.header.Set(key, value)
	return &res
}

// Error implements the standard error interface.
func (a *APIError) Error() string {
	return a.message
}

// StatusCode returns the HTTP status code of the response.
func (a *APIError) StatusCode() int {
	return a.statusCode
}

// Message returns the text of the response.
func (a *APIError) Message() string {
	return a.message
}

// HTTPWrite can be called to return this error as a HTTP Response.
func (a *APIError) HTTPWrite(w http.ResponseWriter) {
	for k, v := range a.header {
		w.Header()[k] = v
	}
	w.Header().Set("Content-Type", textPlain)
	w.WriteHeader(a.statusCode)
	io.WriteString(w, a.message)
	io.WriteString(w, "\n")
}

// Ensure APIError is a HTTPWriter
var _ HTTPWriter = &APIError{}

// AsAPIError finds the first APIError in err's chain, following both
// errors.Wrap causes and fmt.Errorf("%w") wrapping.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	if apiErr, ok := errors.Cause(err).(*APIError); ok {
		return apiErr, true
	}
	return nil, false
}

// StatusOf returns the status code an error should be reported with:
// the APIError's code if it has one, 500 otherwise.
func StatusOf(err error) int {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.statusCode
	}
	return http.StatusInternalServerError
}
