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

package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
)

// client sends protocol requests to one dataset.
type client struct {
	// The dataset URL, like "http://localhost:3030/ds".
	dataset string
	http    *retryablehttp.Client
}

func newClient(dataset string, timeout time.Duration, retries int) *client {
	c := retryablehttp.NewClient()
	c.HTTPClient.Timeout = timeout
	c.RetryMax = retries
	c.RetryWaitMin = 100 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.Logger = debugLogger{log.WithField("component", "http")}
	// Report the last response rather than a generic error once the retries
	// run out.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &client{dataset: strings.TrimSuffix(dataset, "/"), http: c}
}

// debugLogger sends retryablehttp's per-request chatter to the debug level.
type debugLogger struct {
	entry *log.Entry
}

func (l debugLogger) Printf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// statusError is an unsuccessful response.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned %d %s: %s", e.status, http.StatusText(e.status), strings.TrimSpace(e.body))
}

// graphQuery returns the query string addressing a graph: the default
// graph if 'graph' is empty.
func graphQuery(graph string) string {
	if graph == "" {
		return "default"
	}
	return url.Values{"graph": {graph}}.Encode()
}

// do sends the request and returns the response if its status is 2xx.
// Otherwise the body is read into a statusError.
func (c *client) do(ctx context.Context, method, rawQuery, contentType string,
	body interface{}, accept string) (*http.Response, error) {
	target := c.dataset
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	req, err := retryablehttp.NewRequest(method, target, body)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if span := opentracing.SpanFromContext(ctx); span != nil {
		err := opentracing.GlobalTracer().Inject(span.Context(), opentracing.HTTPHeaders,
			opentracing.HTTPHeadersCarrier(req.Header))
		if err != nil {
			log.WithError(err).Debug("Unable to propagate trace")
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		msg, _ := ioutil.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &statusError{status: resp.StatusCode, body: string(msg)}
	}
	log.WithFields(log.Fields{
		"method":    method,
		"status":    resp.StatusCode,
		"requestID": resp.Header.Get("X-Request-Id"),
	}).Debug("Request complete")
	return resp, nil
}

// query runs a SPARQL query and copies the results to w.
func (c *client) query(ctx context.Context, text, accept string, timeout time.Duration, w io.Writer) error {
	params := url.Values{}
	if timeout > 0 {
		params.Set("timeout", fmt.Sprintf("%g", timeout.Seconds()))
	}
	resp, err := c.do(ctx, http.MethodPost, params.Encode(), "application/sparql-query", []byte(text), accept)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

// update runs a SPARQL update.
func (c *client) update(ctx context.Context, text string) error {
	resp, err := c.do(ctx, http.MethodPost, "", "application/sparql-update", []byte(text), "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// get copies the contents of a graph to w.
func (c *client) get(ctx context.Context, graph, accept string, w io.Writer) error {
	resp, err := c.do(ctx, http.MethodGet, graphQuery(graph), "", nil, accept)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

// send PUTs or POSTs a document into a graph. body is opened again for each
// retry. It returns true if the graph was created.
func (c *client) send(ctx context.Context, method, graph, contentType string,
	body func() (io.Reader, error)) (created bool, err error) {
	resp, err := c.do(ctx, method, graphQuery(graph), contentType, retryablehttp.ReaderFunc(body), "")
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusCreated, nil
}

// delete removes a graph, or empties the default graph.
func (c *client) delete(ctx context.Context, graph string) error {
	resp, err := c.do(ctx, http.MethodDelete, graphQuery(graph), "", nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
