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

package boltstore

import (
	"encoding/binary"
	"fmt"

	"github.com/ebay/sparqld/rdf"
)

// appendTerm appends the key encoding of a term to buf. Each field is length
// prefixed, so no encoded term is a prefix of another and a key made of
// several terms can be scanned by the prefix of its leading terms.
func appendTerm(buf []byte, t rdf.Term) []byte {
	buf = append(buf, byte(t.Kind))
	buf = appendString(buf, t.Value)
	buf = appendString(buf, t.Datatype)
	return appendString(buf, t.Lang)
}

func appendString(buf []byte, s string) []byte {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(s)))
	buf = append(buf, lenBuf[:n]...)
	return append(buf, s...)
}

// decodeTerm decodes one term from the start of buf and returns it and the
// remaining bytes.
func decodeTerm(buf []byte) (rdf.Term, []byte, error) {
	if len(buf) == 0 {
		return rdf.Term{}, nil, fmt.Errorf("boltstore: truncated key")
	}
	t := rdf.Term{Kind: rdf.Kind(buf[0])}
	rest := buf[1:]
	var err error
	if t.Value, rest, err = decodeString(rest); err != nil {
		return t, nil, err
	}
	if t.Datatype, rest, err = decodeString(rest); err != nil {
		return t, nil, err
	}
	if t.Lang, rest, err = decodeString(rest); err != nil {
		return t, nil, err
	}
	return t, rest, nil
}

func decodeString(buf []byte) (string, []byte, error) {
	l, n := binary.Uvarint(buf)
	if n <= 0 || uint64(len(buf)-n) < l {
		return "", nil, fmt.Errorf("boltstore: truncated key")
	}
	end := n + int(l)
	return string(buf[n:end]), buf[end:], nil
}

// tripleKey encodes the three terms, in the order given.
func tripleKey(a, b, c rdf.Term) []byte {
	buf := make([]byte, 0, 16+len(a.Value)+len(b.Value)+len(c.Value))
	buf = appendTerm(buf, a)
	buf = appendTerm(buf, b)
	return appendTerm(buf, c)
}

// decodeTripleKey reverses tripleKey.
func decodeTripleKey(key []byte) (a, b, c rdf.Term, err error) {
	if a, key, err = decodeTerm(key); err != nil {
		return
	}
	if b, key, err = decodeTerm(key); err != nil {
		return
	}
	if c, key, err = decodeTerm(key); err != nil {
		return
	}
	if len(key) != 0 {
		err = fmt.Errorf("boltstore: %d trailing bytes in key", len(key))
	}
	return
}
