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
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/ebay/sparqld/rdf/codec"
	"github.com/ebay/sparqld/util/parallel"
	log "github.com/sirupsen/logrus"
)

// loadFile is one document to send.
type loadFile struct {
	path        string
	contentType string
	size        int64
}

// statFiles checks that every file exists and has a known syntax.
func statFiles(paths []string, override string) ([]loadFile, error) {
	files := make([]loadFile, len(paths))
	for i, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		ct := override
		if ct == "" {
			f := codec.ByFilename(path)
			if f == nil {
				return nil, fmt.Errorf("can't tell the syntax of %v from its name: use --type", path)
			}
			ct = f.MediaType
		}
		files[i] = loadFile{path: path, contentType: ct, size: info.Size()}
	}
	return files, nil
}

// loadFiles sends the files into the graph, 'concurrency' at a time. PUT
// replaces the graph with each file in turn, so it only makes sense for a
// single file. Progress is drawn unless quiet is set.
func loadFiles(ctx context.Context, c *client, method, graph string, files []loadFile,
	concurrency int, quiet bool) error {
	bars := make([]*pb.ProgressBar, len(files))
	for i, f := range files {
		bars[i] = pb.New64(f.size).SetUnits(pb.U_BYTES).Prefix(filepath.Base(f.path) + " ")
		bars[i].SetMaxWidth(100)
		bars[i].ShowSpeed = true
		if quiet {
			bars[i].NotPrint = true
			bars[i].Output = ioutil.Discard
		}
	}
	if !quiet {
		pool, err := pb.StartPool(bars...)
		if err != nil {
			log.WithError(err).Warn("Unable to draw progress bars")
		} else {
			defer pool.Stop()
		}
	}
	start := time.Now()
	var created, bytes int64
	err := parallel.InvokeLimited(ctx, len(files), concurrency, func(ctx context.Context, i int) error {
		f := files[i]
		bar := bars[i]
		open := func() (io.Reader, error) {
			fh, err := os.Open(f.path)
			if err != nil {
				return nil, err
			}
			// A retry starts the file again.
			bar.Set64(0)
			return bar.NewProxyReader(&closingReader{fh}), nil
		}
		wasCreated, err := c.send(ctx, method, graph, f.contentType, open)
		if err != nil {
			return fmt.Errorf("%v: %v", f.path, err)
		}
		if wasCreated {
			atomic.AddInt64(&created, 1)
		}
		atomic.AddInt64(&bytes, f.size)
		bar.Finish()
		return nil
	})
	elapsed := time.Since(start)
	log.WithFields(log.Fields{
		"files":   len(files),
		"bytes":   fmtr.Sprintf("%d", bytes),
		"elapsed": elapsed,
		"created": created > 0,
	}).Infof("%s complete", method)
	if err == nil && method == http.MethodPut && len(files) > 1 {
		log.Warn("Each PUT replaced the graph: only the last file to finish remains")
	}
	return err
}

// closingReader closes the file once it has been read to the end, since the
// HTTP client may not close request bodies given as plain readers.
type closingReader struct {
	f *os.File
}

func (r *closingReader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	if err == io.EOF {
		r.f.Close()
	}
	return n, err
}
