package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	realhttp "github.com/immobiliare/realhttp-go"
)

func newPostCmd() *cobra.Command {
	var jsonBody string
	var formPairs []string
	var rawBody string
	var contentType string

	cmd := &cobra.Command{
		Use:   "post <path>",
		Short: "Issue a POST request with a JSON, form, or raw body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := resolvePostBody(jsonBody, formPairs, rawBody, contentType)
			if err != nil {
				return err
			}

			return runPost(cmd, args[0], body)
		},
	}

	cmd.Flags().StringVar(&jsonBody, "json-body", "", "a JSON object literal to send as the request body")
	cmd.Flags().StringArrayVar(&formPairs, "form", nil, "a key=value pair to send as application/x-www-form-urlencoded (repeatable)")
	cmd.Flags().StringVar(&rawBody, "raw", "", "a raw string body")
	cmd.Flags().StringVar(&contentType, "content-type", "", "content type for --raw (defaults to text/plain)")

	cmd.MarkFlagsMutuallyExclusive("json-body", "form", "raw")

	return cmd
}

// resolvePostBody picks exactly one body variant from the flags the caller
// set, defaulting to EmptyBody when none were.
func resolvePostBody(jsonBody string, formPairs []string, rawBody, contentType string) (realhttp.Body, error) {
	switch {
	case jsonBody != "":
		var value any
		if err := json.Unmarshal([]byte(jsonBody), &value); err != nil {
			return realhttp.Body{}, fmt.Errorf("parsing --json-body: %w", err)
		}

		return realhttp.JSONBody(value, realhttp.DefaultJSONOptions), nil

	case len(formPairs) > 0:
		pairs := make(map[string]any, len(formPairs))

		for _, kv := range formPairs {
			name, value, ok := strings.Cut(kv, "=")
			if !ok {
				return realhttp.Body{}, fmt.Errorf("malformed --form pair %q: expected key=value", kv)
			}

			pairs[name] = value
		}

		return realhttp.FormURLEncodedBody(pairs, realhttp.ArrayEncodingBrackets, realhttp.BoolEncodingNumeric), nil

	case rawBody != "":
		return realhttp.StringBody(rawBody, contentType), nil

	default:
		return realhttp.EmptyBody, nil
	}
}

func runPost(cmd *cobra.Command, path string, body realhttp.Body) error {
	client, err := newClientFromFlags()
	if err != nil {
		return err
	}

	req := realhttp.NewRequest(realhttp.MethodPost, path)
	req.Body = body

	resp, err := client.Fetch(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", path, err)
	}

	if resp.IsError() {
		return fmt.Errorf("request failed: %s", resp.Error.Error())
	}

	return printResponse(resp)
}
