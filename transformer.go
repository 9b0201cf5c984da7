package realhttp

// ResponseTransformer rewrites a Response before it is returned to the
// caller, given the Request that produced it. Transformers run after the
// validator chain has settled on a final response, in registration order,
// and are never part of the retry loop.
type ResponseTransformer func(resp *Response, req *Request) *Response

// applyTransformers runs each transformer in order, feeding each one's
// output into the next.
func applyTransformers(transformers []ResponseTransformer, resp *Response, req *Request) *Response {
	for _, t := range transformers {
		if t == nil {
			continue
		}

		resp = t(resp, req)
	}

	return resp
}
