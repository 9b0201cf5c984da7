package realhttp

import "strings"

// resolveURL resolves the final request URL: an absolute URL on the
// request wins outright (client base URL ignored); otherwise the final URL
// is clientBase / path with a single "/" boundary, and query items are
// merged client-then-request, percent-encoded independently by name/value.
func resolveURL(c *Client, req *Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	base := req.AbsoluteURL
	if base == "" {
		if c.baseURL == "" {
			return "", NewError(CategoryInvalidURL, "request has a relative path but client has no baseURL", nil)
		}

		base = joinURL(c.baseURL, req.Path)
	}

	query := encodeQueryItems(mergeQuery(c.defaultQuery, req.QueryItems))
	if query == "" {
		return base, nil
	}

	if strings.Contains(base, "?") {
		return base + "&" + query, nil
	}

	return base + "?" + query, nil
}

// joinURL joins base and path with exactly one "/" boundary between them.
func joinURL(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	path = strings.TrimPrefix(path, "/")

	return base + "/" + path
}
