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
	"bufio"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ebay/sparqld/util/table"
	"github.com/ebay/sparqld/util/web"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var fmtr = message.NewPrinter(language.English)

func (s *Server) ping(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Cache-Control", "no-cache")
	web.Write(w, time.Now().UTC().Format(time.RFC3339Nano)+"\n")
}

type serviceInfo struct {
	Kind      string   `json:"kind"`
	Endpoints []string `json:"endpoints"`
	Active    bool     `json:"active"`
}

type datasetInfo struct {
	Name          string        `json:"name"`
	Policy        string        `json:"policy"`
	Transactional bool          `json:"transactional"`
	Services      []serviceInfo `json:"services"`
}

type serverDescription struct {
	Started  time.Time     `json:"started"`
	Uptime   float64       `json:"uptimeSeconds"`
	Datasets []datasetInfo `json:"datasets"`
}

// serverInfo describes the datasets and their services.
func (s *Server) serverInfo(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	desc := serverDescription{
		Started: s.started.UTC(),
		Uptime:  time.Since(s.started).Seconds(),
	}
	for _, ds := range s.registry.Datasets() {
		info := datasetInfo{
			Name:          ds.Name,
			Policy:        ds.Policy.Name,
			Transactional: ds.Dataset.Transactional(),
		}
		for _, svc := range ds.Services {
			info.Services = append(info.Services, serviceInfo{
				Kind:      svc.Kind,
				Endpoints: svc.Endpoints,
				Active:    svc.Active,
			})
		}
		desc.Datasets = append(desc.Datasets, info)
	}
	web.Write(w, desc)
}

type transactionStats struct {
	Begins int64 `json:"begins"`
	Ends   int64 `json:"ends"`
}

type datasetStats struct {
	CounterValues
	Transactions transactionStats         `json:"transactions"`
	Services     map[string]CounterValues `json:"services"`
}

func statsOf(ds *DatasetRef) datasetStats {
	begins, ends := ds.TxnCounts()
	res := datasetStats{
		CounterValues: ds.Counters.Values(),
		Transactions:  transactionStats{Begins: begins, Ends: ends},
		Services:      make(map[string]CounterValues, len(ds.Services)),
	}
	for _, svc := range ds.Services {
		res.Services[svc.Kind] = svc.Counters.Values()
	}
	return res
}

// stats reports the request counters of every dataset.
func (s *Server) stats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.writeStats(w, r, s.registry.Datasets())
}

// datasetStats reports the counters of one dataset. Its name is the rest of
// the path, so "/$/stats/ds/sub" is about "/ds/sub".
func (s *Server) datasetStats(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	name := p.ByName("name")
	if name == "/" {
		s.stats(w, r, p)
		return
	}
	ds, ok := s.registry.Get(strings.TrimSuffix(name, "/"))
	if !ok {
		web.WriteError(w, http.StatusNotFound, "no dataset named %s", name)
		return
	}
	s.writeStats(w, r, []*DatasetRef{ds})
}

func (s *Server) writeStats(w http.ResponseWriter, r *http.Request, datasets []*DatasetRef) {
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		bw := bufio.NewWriter(w)
		defer bw.Flush()
		writeStatsTable(bw, datasets)
		return
	}
	res := make(map[string]datasetStats, len(datasets))
	for _, ds := range datasets {
		res[ds.Name] = statsOf(ds)
	}
	web.Write(w, map[string]interface{}{"datasets": res})
}

func writeStatsTable(w *bufio.Writer, datasets []*DatasetRef) {
	count := func(c int64) string {
		return fmtr.Sprintf("%d", c)
	}
	t := [][]string{{"Dataset", "Service", "Requests", "Good", "Bad"}}
	for _, ds := range datasets {
		v := ds.Counters.Values()
		t = append(t, []string{ds.Name, "", count(v.Requests), count(v.Good), count(v.Bad)})
		for _, svc := range ds.Services {
			v := svc.Counters.Values()
			t = append(t, []string{"", fmt.Sprintf("%s %v", svc.Kind, svc.Endpoints),
				count(v.Requests), count(v.Good), count(v.Bad)})
		}
	}
	table.PrettyPrint(w, t, table.HeaderRow|table.RightJustify)
}
