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

package rdf

import (
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/cespare/xxhash"
)

// Resolve resolves the IRI reference 'ref' against the absolute IRI 'base'.
// An empty base leaves 'ref' as is, provided it is already absolute.
func Resolve(base, ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("bad IRI <%s>: %v", ref, err)
	}
	if r.IsAbs() {
		return ref, nil
	}
	if base == "" {
		return "", fmt.Errorf("relative IRI <%s> with no base", ref)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("bad base IRI <%s>: %v", base, err)
	}
	if !b.IsAbs() {
		return "", fmt.Errorf("base IRI <%s> is not absolute", base)
	}
	return b.ResolveReference(r).String(), nil
}

// A BlankNodeScope maps the blank node labels of one document onto labels
// that won't collide with those of another document. The zero value is not
// usable; call NewBlankNodeScope.
type BlankNodeScope struct {
	seed   string
	labels map[string]string
}

// NewBlankNodeScope returns a scope whose labels are derived from seed. Each
// document parsed into the same dataset should use a distinct seed.
func NewBlankNodeScope(seed string) *BlankNodeScope {
	return &BlankNodeScope{seed: seed, labels: make(map[string]string)}
}

// Label returns the scoped label for the document label 'l'. The same input
// label always results in the same output label within a scope.
func (s *BlankNodeScope) Label(l string) string {
	if scoped, ok := s.labels[l]; ok {
		return scoped
	}
	var buf [8]byte
	h := xxhash.Sum64String(s.seed + "\x00" + l)
	for i := range buf {
		buf[i] = byte(h >> (56 - 8*uint(i)))
	}
	scoped := "b" + hex.EncodeToString(buf[:])
	s.labels[l] = scoped
	return scoped
}

// Blank returns a blank node term with the scoped label for 'l'.
func (s *BlankNodeScope) Blank(l string) Term {
	return Blank(s.Label(l))
}
