package realhttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
)

// Body is a closed sum type over the supported request body variants,
// modeled as a closed enumeration rather than an interface so call sites
// stay exhaustive and a switch on kind can't silently miss a case. Exactly
// one of the typed constructors below should be used; the zero value is
// EmptyBody.
type Body struct {
	kind bodyKind

	// Raw / String / Stream-from-bytes payload.
	raw         []byte
	contentType string

	// Json payload, encoded lazily so options (e.g. SortedKeys) are honored
	// at Encode time rather than at construction time.
	jsonValue   any
	jsonOptions JSONOptions

	// FormUrlEncoded payload.
	formPairs    map[string]any
	arrayEncoding ArrayEncoding
	boolEncoding  BoolEncoding

	// Stream payload backed by a file or an io.Reader of known length.
	streamSource io.Reader
	streamSize   int64
	streamClose  func() error

	// Multipart payload.
	multipart *multipartBody
}

type bodyKind int

const (
	bodyEmpty bodyKind = iota
	bodyRaw
	bodyString
	bodyJSON
	bodyFormURLEncoded
	bodyStream
	bodyMultipart
)

// EmptyBody is a body with no payload (e.g. for GET/DELETE requests).
var EmptyBody = Body{kind: bodyEmpty}

// RawBody builds a Body from raw bytes with an explicit content type.
func RawBody(data []byte, contentType string) Body {
	return Body{kind: bodyRaw, raw: data, contentType: contentType}
}

// StringBody builds a Body from a string, defaulting to text/plain.
func StringBody(text string, contentType string) Body {
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}

	return Body{kind: bodyString, raw: []byte(text), contentType: contentType}
}

// JSONOptions controls JSON body serialization.
type JSONOptions struct {
	// SortedKeys keeps URLs cache-stable across repeated encodes of
	// equivalent maps.
	SortedKeys bool
}

// DefaultJSONOptions sorts object keys by default.
var DefaultJSONOptions = JSONOptions{SortedKeys: true}

// JSONBody builds a Body that serializes value as JSON at encode time.
func JSONBody(value any, opts JSONOptions) Body {
	return Body{kind: bodyJSON, jsonValue: value, jsonOptions: opts}
}

// ArrayEncoding selects how FormUrlEncoded renders array values.
type ArrayEncoding int

const (
	// ArrayEncodingBrackets renders key[]=v1&key[]=v2, the default.
	ArrayEncodingBrackets ArrayEncoding = iota
	// ArrayEncodingRepeated renders key=v1&key=v2.
	ArrayEncodingRepeated
)

// BoolEncoding selects how FormUrlEncoded renders boolean values.
type BoolEncoding int

const (
	// BoolEncodingNumeric renders booleans as 0/1, the default.
	BoolEncodingNumeric BoolEncoding = iota
	// BoolEncodingLiteral renders booleans as true/false.
	BoolEncodingLiteral
)

// FormURLEncodedBody builds a Body that flattens pairs into
// application/x-www-form-urlencoded at encode time, honoring bracket
// notation for nested maps/arrays.
func FormURLEncodedBody(pairs map[string]any, arrayEncoding ArrayEncoding, boolEncoding BoolEncoding) Body {
	return Body{
		kind:          bodyFormURLEncoded,
		formPairs:     pairs,
		arrayEncoding: arrayEncoding,
		boolEncoding:  boolEncoding,
	}
}

// StreamBody builds a Body from a reader of known size. contentType
// defaults per source kind when empty (application/octet-stream). The
// transport consumes bytes lazily — the reader is not read until the
// request is sent. The Body holds that one reader: every Encode hands out
// the same reader, and no fresh stream is obtained for a later attempt (a
// retry sends whatever the earlier attempt left unread).
func StreamBody(r io.Reader, size int64, contentType string) Body {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return Body{kind: bodyStream, streamSource: r, streamSize: size, contentType: contentType}
}

// FileStreamBody stats and opens path once, when it is called, and returns
// a stream Body over that open file. The data loader closes the file after
// the first attempt; the Body does not reopen path for a retry.
func FileStreamBody(path string, contentType string) (Body, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Body{}, NewError(CategoryMultipartInvalidFile, "stat file for stream body", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return Body{}, NewError(CategoryMultipartInvalidFile, "open file for stream body", err)
	}

	b := StreamBody(f, info.Size(), contentType)
	b.streamClose = f.Close

	return b, nil
}

// Kind reports which variant b holds, for callers that need to branch on it.
func (b Body) Kind() string {
	switch b.kind {
	case bodyEmpty:
		return "empty"
	case bodyRaw:
		return "raw"
	case bodyString:
		return "string"
	case bodyJSON:
		return "json"
	case bodyFormURLEncoded:
		return "formUrlEncoded"
	case bodyStream:
		return "stream"
	case bodyMultipart:
		return "multipart"
	default:
		return "unknown"
	}
}

// IsEmpty reports whether b carries no payload.
func (b Body) IsEmpty() bool {
	return b.kind == bodyEmpty
}

// Encoded is the result of encoding a Body: the bytes (or a reader, for
// streaming variants) to send, the Content-Type header, and the declared
// length (-1 when unknown, e.g. a stream of undeclared size).
type Encoded struct {
	Reader        io.Reader
	ContentLength int64
	ContentType   string
	// Closer, if non-nil, must be called once the body has been fully
	// consumed (e.g. to release a file handle backing a stream body).
	Closer func() error
}

// Encode serializes b into wire bytes/stream plus headers. Build-time
// failures (bad JSON, unreadable multipart file) surface here, synchronously,
// rather than being discovered later at await time.
func (b Body) Encode() (Encoded, error) {
	switch b.kind {
	case bodyEmpty:
		return Encoded{Reader: http.NoBody, ContentLength: 0}, nil

	case bodyRaw:
		return Encoded{
			Reader:        bytes.NewReader(b.raw),
			ContentLength: int64(len(b.raw)),
			ContentType:   b.contentType,
		}, nil

	case bodyString:
		return Encoded{
			Reader:        bytes.NewReader(b.raw),
			ContentLength: int64(len(b.raw)),
			ContentType:   b.contentType,
		}, nil

	case bodyJSON:
		data, err := encodeJSON(b.jsonValue, b.jsonOptions)
		if err != nil {
			return Encoded{}, NewError(CategoryJSONEncodingFailed, "encoding JSON body", err)
		}

		return Encoded{
			Reader:        bytes.NewReader(data),
			ContentLength: int64(len(data)),
			ContentType:   "application/json",
		}, nil

	case bodyFormURLEncoded:
		data, err := encodeForm(b.formPairs, b.arrayEncoding, b.boolEncoding)
		if err != nil {
			return Encoded{}, NewError(CategoryURLEncodingFailed, "encoding form body", err)
		}

		return Encoded{
			Reader:        bytes.NewReader(data),
			ContentLength: int64(len(data)),
			ContentType:   "application/x-www-form-urlencoded",
		}, nil

	case bodyStream:
		return Encoded{
			Reader:        b.streamSource,
			ContentLength: b.streamSize,
			ContentType:   b.contentType,
			Closer:        b.streamClose,
		}, nil

	case bodyMultipart:
		return b.multipart.encode()

	default:
		return Encoded{}, NewError(CategoryInternal, fmt.Sprintf("unknown body kind %d", b.kind), nil)
	}
}

// encodeJSON marshals value, optionally stabilizing map key order. Go's
// encoding/json already sorts map[string]any keys by default; SortedKeys
// exists so callers can see the policy is explicit rather than incidental.
func encodeJSON(value any, opts JSONOptions) ([]byte, error) {
	if opts.SortedKeys {
		// encoding/json sorts map[string]T keys already; re-marshal through
		// a canonical map when the caller passed one so the guarantee holds
		// even if a custom MarshalJSON on value does not sort.
		if m, ok := value.(map[string]any); ok {
			return marshalSortedMap(m)
		}
	}

	return json.Marshal(value)
}

// marshalSortedMap marshals m with keys visited in sorted order, building
// the object by hand so the guarantee does not depend on encoding/json's
// internal (implementation-defined) map ordering behavior.
func marshalSortedMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}

		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := json.Marshal(m[k])
		if err != nil {
			return nil, err
		}

		buf.Write(valBytes)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
