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
	"sort"
	"strconv"
	"strings"

	"github.com/ebay/sparqld/rdf/codec"
	"github.com/ebay/sparqld/sparql/results"
)

// Parameters that override content negotiation.
const (
	paramOutput      = "output"
	paramForceAccept = "force-accept"
)

// shortNames expands the values allowed in output= and force-accept=. Other
// values are taken as media types.
var shortNames = map[string]string{
	"json":     "application/sparql-results+json",
	"xml":      "application/sparql-results+xml",
	"sparql":   "application/sparql-results+xml",
	"csv":      "text/csv",
	"tsv":      "text/tab-separated-values",
	"text":     "text/plain",
	"thrift":   "application/sparql-results+thrift",
	"nt":       "application/n-triples",
	"ntriples": "application/n-triples",
	"nq":       "application/n-quads",
	"nquads":   "application/n-quads",
}

func expandShortName(v string) string {
	v = strings.TrimSpace(v)
	if mt, ok := shortNames[strings.ToLower(v)]; ok {
		return mt
	}
	return v
}

// An offer is an output format the server can produce. Exactly one of
// results and rdf is set.
type offer struct {
	// The first one is sent in Content-Type.
	mediaTypes []string
	results    *results.Format
	rdf        *codec.Format
}

func resultOffers() []offer {
	var res []offer
	for _, f := range results.All() {
		res = append(res, offer{mediaTypes: f.MediaTypes(), results: f})
	}
	return res
}

func rdfOffers(formats []*codec.Format) []offer {
	var res []offer
	for _, f := range formats {
		res = append(res, offer{mediaTypes: f.MediaTypes(), rdf: f})
	}
	return res
}

// negotiate picks the output format among 'offers', the first of which is
// the default. force-accept= wins, then output= (or its alias format=), then
// the Accept header. It returns the format and the Content-Type to send.
func negotiate(a *Action, offers []offer) (offer, string, error) {
	if forced := a.Params.Get(paramForceAccept); forced != "" {
		mt := expandShortName(forced)
		o, ok := findOffer(offers, mt)
		if !ok {
			return offer{}, "", errBadRequest("can't produce %s", mt)
		}
		return o, mt, nil
	}
	if output := a.Params.Get(paramOutput); output != "" {
		mt := expandShortName(output)
		o, ok := findOffer(offers, mt)
		if !ok {
			return offer{}, "", errBadRequest("can't produce %s", mt)
		}
		return o, contentType(o.mediaTypes[0]), nil
	}
	for _, r := range parseAccept(a.Request.Header.Get("Accept")) {
		for _, o := range offers {
			for _, mt := range o.mediaTypes {
				if r.matches(mt) {
					return o, contentType(o.mediaTypes[0]), nil
				}
			}
		}
	}
	return offers[0], contentType(offers[0].mediaTypes[0]), nil
}

// contentType adds the charset to non-XML media types. XML documents declare
// their own encoding.
func contentType(mediaType string) string {
	if results.IsXML(mediaType) {
		return mediaType
	}
	return mediaType + "; charset=utf-8"
}

func findOffer(offers []offer, mediaType string) (offer, bool) {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(mediaType)
	}
	for _, o := range offers {
		for _, m := range o.mediaTypes {
			if m == mt {
				return o, true
			}
		}
	}
	return offer{}, false
}

// An acceptRange is one element of an Accept header.
type acceptRange struct {
	typ, subtype string
	q            float64
}

func (r acceptRange) matches(mediaType string) bool {
	slash := strings.IndexByte(mediaType, '/')
	if slash < 0 {
		return false
	}
	typ, subtype := mediaType[:slash], mediaType[slash+1:]
	return (r.typ == "*" || r.typ == typ) && (r.subtype == "*" || r.subtype == subtype)
}

// parseAccept returns the ranges of an Accept header with q > 0, most
// preferred first. Equal q values keep their order; malformed elements are
// skipped.
func parseAccept(header string) []acceptRange {
	var res []acceptRange
	for _, elem := range strings.Split(header, ",") {
		elem = strings.TrimSpace(elem)
		if elem == "" {
			continue
		}
		mt, params, err := mime.ParseMediaType(elem)
		if err != nil {
			continue
		}
		if mt == "*" {
			mt = "*/*"
		}
		slash := strings.IndexByte(mt, '/')
		if slash < 0 {
			continue
		}
		r := acceptRange{typ: mt[:slash], subtype: mt[slash+1:], q: 1}
		if qs, ok := params["q"]; ok {
			q, err := strconv.ParseFloat(qs, 64)
			if err != nil {
				continue
			}
			r.q = q
		}
		if r.q > 0 {
			res = append(res, r)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].q > res[j].q
	})
	return res
}
