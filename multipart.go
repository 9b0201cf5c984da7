package realhttp

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// boundaryMinLength is the minimum random-alphanumeric length required for
// a generated multipart boundary.
const boundaryMinLength = 16

// multipartBody holds the parts and boundary for a Multipart Body variant.
// Kept as a distinct type (rather than inline in Body) so its encode logic
// can be unit tested in isolation.
type multipartBody struct {
	boundary string
	parts    []MultipartPart
	preamble string
}

// MultipartPart is one part of a multipart/form-data body: a
// Content-Disposition (name, optional filename), an optional explicit
// Content-Type, and a length-bearing byte source.
type MultipartPart struct {
	Name        string
	FileName    string // optional
	ContentType string // optional; auto-omitted when empty
	Source      PartSource
}

// PartSource is a length-bearing byte source for a MultipartPart: in-memory
// bytes (BytesSource), or any reader of known size, such as an already open
// file (ReaderSource).
type PartSource struct {
	reader io.Reader
	size   int64
	closer func() error
}

// BytesSource wraps an in-memory byte slice as a PartSource.
func BytesSource(data []byte) PartSource {
	return PartSource{reader: bytes.NewReader(data), size: int64(len(data))}
}

// ReaderSource wraps an arbitrary reader of known size as a PartSource. The
// caller is responsible for the reader being fresh (unconsumed) at encode
// time — multipart bodies, like stream bodies, are read once per attempt.
func ReaderSource(r io.Reader, size int64, closer func() error) PartSource {
	return PartSource{reader: r, size: size, closer: closer}
}

// MultipartBody builds a Body carrying a multipart/form-data payload. When
// boundary is empty, one is generated from a UUID with separators stripped
// (well over the minimum boundaryMinLength requires).
func MultipartBody(parts []MultipartPart, boundary string, preamble string) Body {
	if boundary == "" {
		boundary = generateBoundary()
	}

	return Body{kind: bodyMultipart, multipart: &multipartBody{boundary: boundary, parts: parts, preamble: preamble}}
}

// generateBoundary derives an alphanumeric boundary from a random UUID;
// stripping hyphens yields 32 alphanumeric characters, well above
// boundaryMinLength.
func generateBoundary() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")

	return "RealHTTPBoundary" + raw
}

// encode serializes the multipart body to the bit-exact wire framing:
//
//	[preamble CRLF CRLF]?
//	(--boundary CRLF
//	 (HeaderName: HeaderValue CRLF)+
//	 CRLF
//	 <part-bytes>
//	 CRLF)+
//	--boundary-- CRLF
func (m *multipartBody) encode() (Encoded, error) {
	var buf bytes.Buffer

	if m.preamble != "" {
		buf.WriteString(m.preamble)
		buf.WriteString("\r\n\r\n")
	}

	var closers []func() error
	var encodeErrs []error

	for _, part := range m.parts {
		if err := writeMultipartPart(&buf, m.boundary, part); err != nil {
			encodeErrs = append(encodeErrs, err)
			continue
		}

		if part.Source.closer != nil {
			closers = append(closers, part.Source.closer)
		}
	}

	if err := CombineErrors(encodeErrs...); err != nil {
		for _, c := range closers {
			_ = c()
		}

		return Encoded{}, NewError(CategoryMultipartEncodingFailed, "encoding multipart parts", err)
	}

	fmt.Fprintf(&buf, "--%s--\r\n", m.boundary)

	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}

		return CombineErrors(errs...)
	}

	return Encoded{
		Reader:        bytes.NewReader(buf.Bytes()),
		ContentLength: int64(buf.Len()),
		ContentType:   fmt.Sprintf("multipart/form-data; boundary=%s", m.boundary),
		Closer:        closeAll,
	}, nil
}

// writeMultipartPart appends one framed part to buf.
func writeMultipartPart(buf *bytes.Buffer, boundary string, part MultipartPart) error {
	fmt.Fprintf(buf, "--%s\r\n", boundary)

	disposition := fmt.Sprintf(`form-data; name=%q`, part.Name)
	if part.FileName != "" {
		disposition += fmt.Sprintf(`; filename=%q`, normalizeFileName(part.FileName))
	}

	fmt.Fprintf(buf, "Content-Disposition: %s\r\n", disposition)

	if part.ContentType != "" {
		fmt.Fprintf(buf, "Content-Type: %s\r\n", part.ContentType)
	}

	buf.WriteString("\r\n")

	if part.Source.reader == nil {
		return NewError(CategoryMultipartInvalidFile, fmt.Sprintf("part %q has no byte source", part.Name), nil)
	}

	if _, err := io.Copy(buf, part.Source.reader); err != nil {
		return fmt.Errorf("reading part %q: %w", part.Name, err)
	}

	buf.WriteString("\r\n")

	return nil
}

// normalizeFileName applies Unicode NFC normalization before the filename is
// embedded in a Content-Disposition header, so equivalent filenames that
// differ only in combining-character order produce identical headers.
func normalizeFileName(name string) string {
	return norm.NFC.String(name)
}
