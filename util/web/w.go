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

// Package web aids in writing HTTP servers.
package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const textPlain = "text/plain; charset=utf-8"

// WriteError writes a plain text response with the given status code. The
// message is followed by a newline.
func WriteError(w http.ResponseWriter, statusCode int, formatMsg string, params ...interface{}) {
	w.Header().Set("Content-Type", textPlain)
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, formatMsg, params...)
	io.WriteString(w, "\n")
}

// HTTPWriter is implemented by values that know how to write themselves as an
// entire HTTP response, status line included.
type HTTPWriter interface {
	HTTPWrite(w http.ResponseWriter)
}

// Write writes the first non-nil value in vals as the response, so that
// web.Write(w, err, result) reports err if it's set and result otherwise.
//
// Byte slices are written as is. Strings are sent as plain text. Errors are
// sent with their APIError status, or 500 if they don't have one. Other values
// are encoded as indented JSON. If every value is nil, the response is a 204.
func Write(w http.ResponseWriter, vals ...interface{}) {
	for _, val := range vals {
		if val == nil {
			continue
		}
		switch tv := val.(type) {
		case []byte:
			w.Write(tv)
		case string:
			w.Header().Set("Content-Type", textPlain)
			io.WriteString(w, tv)
		case HTTPWriter:
			tv.HTTPWrite(w)
		case error:
			if apiErr, ok := AsAPIError(tv); ok {
				apiErr.HTTPWrite(w)
			} else {
				WriteError(w, http.StatusInternalServerError, "Unexpected error: %s", tv)
			}
		default:
			writeJSON(w, tv)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, val interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(val)
}
