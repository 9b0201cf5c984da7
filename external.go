package realhttp

// This file documents collaborators this library deliberately leaves to the
// caller: their interfaces are defined here so an implementation can be
// plugged in, but none ships with this package.

// URITemplateExpander expands an RFC 6570 URI template against a set of
// variables. This library has no template expansion engine of its own — a
// Request's Path/QueryItems are always a concrete, already expanded string.
type URITemplateExpander interface {
	Expand(template string, vars map[string]any) (string, error)
}

// CurlRenderer renders a Request as an equivalent curl command line, for
// logging/debugging. This library never shells out or formats curl
// invocations itself.
type CurlRenderer interface {
	Render(req *Request) string
}

// MetricsRenderer renders a Response's Metrics for display in an external
// console/dashboard. Metrics is a plain struct; this library never pushes it
// anywhere on its own.
type MetricsRenderer interface {
	Render(m Metrics) string
}
