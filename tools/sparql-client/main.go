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

// Command sparql-client sends SPARQL Protocol and Graph Store Protocol
// requests to a sparqld dataset.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"time"

	docopt "github.com/docopt/docopt-go"
	"github.com/ebay/sparqld/config"
	"github.com/ebay/sparqld/util/debuglog"
	"github.com/ebay/sparqld/util/tracing"
	opentracing "github.com/opentracing/opentracing-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fmtr = message.NewPrinter(language.English)

const usage = `sparql-client is a command-line tool for calling a sparqld dataset.

Usage:
  sparql-client [options] query [--accept=TYPE --query-timeout=DUR] (-f=SRC | QUERY)
  sparql-client [options] update (-f=SRC | UPDATE)
  sparql-client [options] get [--graph=IRI --accept=TYPE]
  sparql-client [options] put [--graph=IRI --type=TYPE] FILE
  sparql-client [options] post [--graph=IRI --type=TYPE -c=NUM -q] FILE...
  sparql-client [options] delete [--graph=IRI]

Options:
  -d=URL, --dataset=URL        URL of the dataset [default: http://localhost:3030/ds]
  -t=DUR, --timeout=DUR        Timeout for each HTTP request, 0 for none [default: 0s]
  -r=NUM, --retries=NUM        Times to retry a failed request [default: 3]
  -f=SRC, --file=SRC           Read the query or update from the file SRC; "-" for stdin.
  --graph=IRI                  The graph to address. The default graph if not given.
  --accept=TYPE                Media type or short name (json, xml, csv, tsv, text, nt, nq) to ask for.
  --query-timeout=DUR          Ask the server to stop the query after DUR.
  --type=TYPE                  Content-Type of the files. By default it's chosen by file extension.
  -c=NUM, --concurrency=NUM    Files to send at once [default: 4]
  -q, --quiet                  Don't draw progress bars.
  -v, --verbose                Log every request.
  --trace=URL                  Send OpenTracing traces to this Jaeger collector.

Examples:
  # Count the triples in the default graph.
  sparql-client query 'SELECT (COUNT(*) AS ?n) { ?s ?p ?o }'

  # Load two files into a named graph.
  sparql-client post --graph=http://example.org/g1 part1.nt part2.nt

  # Replace the default graph from stdin.
  sparql-client put --type=application/n-triples - <data.nt

  # Run the query in report.rq as TSV, giving up after 30 seconds.
  sparql-client query --accept=tsv --query-timeout=30s -f report.rq
`

type options struct {
	Dataset         string
	Timeout         time.Duration
	TimeoutString   string `docopt:"--timeout"`
	Retries         int
	QueryFile       string `docopt:"--file"`
	Graph           string
	Accept          string
	QueryTimeout    time.Duration
	QueryTimeoutStr string `docopt:"--query-timeout"`
	Type            string
	Concurrency     int
	Quiet           bool
	Verbose         bool
	TraceCollector  string   `docopt:"--trace"`
	Files           []string `docopt:"FILE"`
	QueryText       string   `docopt:"QUERY"`
	UpdateText      string   `docopt:"UPDATE"`
	Query           bool     `docopt:"query"`
	Update          bool     `docopt:"update"`
	Get             bool     `docopt:"get"`
	Put             bool     `docopt:"put"`
	Post            bool     `docopt:"post"`
	Delete          bool     `docopt:"delete"`
}

// acceptShortNames expands the --accept short names.
var acceptShortNames = map[string]string{
	"json": "application/sparql-results+json",
	"xml":  "application/sparql-results+xml",
	"csv":  "text/csv",
	"tsv":  "text/tab-separated-values",
	"text": "text/plain",
	"nt":   "application/n-triples",
	"nq":   "application/n-quads",
}

func parseArgs(argv []string) (*options, error) {
	parser := &docopt.Parser{HelpHandler: docopt.PrintHelpAndExit}
	opts, err := parser.ParseArgs(usage, argv, "")
	if err != nil {
		return nil, err
	}
	var options options
	if err := opts.Bind(&options); err != nil {
		return nil, err
	}
	if options.TimeoutString != "" {
		if options.Timeout, err = time.ParseDuration(options.TimeoutString); err != nil {
			return nil, err
		}
	}
	if options.QueryTimeoutStr != "" {
		if options.QueryTimeout, err = time.ParseDuration(options.QueryTimeoutStr); err != nil {
			return nil, err
		}
	}
	if expanded, ok := acceptShortNames[options.Accept]; ok {
		options.Accept = expanded
	}
	if options.Concurrency < 1 {
		options.Concurrency = 1
	}
	return &options, nil
}

// requestText returns the query or update from the command line or from the
// --file option.
func requestText(arg, filename string) (string, error) {
	if filename == "" {
		return arg, nil
	}
	if filename == "-" {
		text, err := ioutil.ReadAll(os.Stdin)
		return string(text), err
	}
	text, err := ioutil.ReadFile(filename)
	return string(text), err
}

// sendStdin PUTs or POSTs standard input into the graph. Standard input is read
// fully first so that the request can be retried.
func sendStdin(ctx context.Context, c *client, method string, options *options) error {
	if options.Type == "" {
		return fmt.Errorf("reading from stdin needs --type")
	}
	data, err := ioutil.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	created, err := c.send(ctx, method, options.Graph, options.Type, func() (io.Reader, error) {
		return bytes.NewReader(data), nil
	})
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"bytes":   fmtr.Sprintf("%d", len(data)),
		"created": created,
	}).Infof("%s complete", method)
	return nil
}

func run(ctx context.Context, options *options) error {
	c := newClient(options.Dataset, options.Timeout, options.Retries)
	switch {
	case options.Query:
		text, err := requestText(options.QueryText, options.QueryFile)
		if err != nil {
			return err
		}
		return c.query(ctx, text, options.Accept, options.QueryTimeout, os.Stdout)
	case options.Update:
		text, err := requestText(options.UpdateText, options.QueryFile)
		if err != nil {
			return err
		}
		return c.update(ctx, text)
	case options.Get:
		return c.get(ctx, options.Graph, options.Accept, os.Stdout)
	case options.Put, options.Post:
		method := http.MethodPost
		if options.Put {
			method = http.MethodPut
		}
		if len(options.Files) == 1 && options.Files[0] == "-" {
			return sendStdin(ctx, c, method, options)
		}
		files, err := statFiles(options.Files, options.Type)
		if err != nil {
			return err
		}
		return loadFiles(ctx, c, method, options.Graph, files, options.Concurrency, options.Quiet)
	case options.Delete:
		return c.delete(ctx, options.Graph)
	}
	return nil
}

func main() {
	debuglog.Configure(debuglog.Options{})
	options, err := parseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("Error parsing command-line arguments: %v", err)
	}
	if options.Verbose {
		debuglog.Configure(debuglog.Options{Level: "debug"})
	}
	if options.TraceCollector != "" {
		tracer, err := tracing.New("sparql-client", &config.Tracing{
			Type:      "jaeger",
			Collector: options.TraceCollector,
		})
		if err != nil {
			log.WithError(err).Warn("Could not initialize OpenTracing tracer")
		} else {
			defer tracer.Close()
		}
	}
	span, ctx := opentracing.StartSpanFromContext(context.Background(), "sparql-client run")
	err = run(ctx, options)
	span.Finish()
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
}
