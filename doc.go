// Package realhttp is a client-side HTTP library built around a Request /
// Response lifecycle, a validator chain with a pluggable retry engine, and a
// body-encoding model covering JSON, form-urlencoded, raw, string, stream,
// and multipart payloads. A request-interception engine for tests lives in
// the stub subpackage.
package realhttp
