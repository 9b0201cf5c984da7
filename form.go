package realhttp

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// encodeForm flattens pairs into an application/x-www-form-urlencoded byte
// string: nested maps become "parent[child]"; arrays render
// per arrayEncoding; booleans render per boolEncoding; percent-encoding
// follows URL-query rules (net/url.Values.Encode, which also sorts keys —
// relied on for stable output across repeated encodes of equivalent input).
func encodeForm(pairs map[string]any, arrayEncoding ArrayEncoding, boolEncoding BoolEncoding) ([]byte, error) {
	values := url.Values{}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		if err := flattenFormValue(values, k, pairs[k], arrayEncoding, boolEncoding); err != nil {
			return nil, err
		}
	}

	return []byte(values.Encode()), nil
}

// flattenFormValue recursively expands one key/value pair into values,
// handling nested maps (bracket notation), slices (per arrayEncoding), and
// scalars (bool per boolEncoding, everything else via fmt.Sprint).
func flattenFormValue(values url.Values, key string, value any, arrayEncoding ArrayEncoding, boolEncoding BoolEncoding) error {
	switch v := value.(type) {
	case map[string]any:
		nestedKeys := make([]string, 0, len(v))
		for k := range v {
			nestedKeys = append(nestedKeys, k)
		}

		sort.Strings(nestedKeys)

		for _, nk := range nestedKeys {
			if err := flattenFormValue(values, fmt.Sprintf("%s[%s]", key, nk), v[nk], arrayEncoding, boolEncoding); err != nil {
				return err
			}
		}

		return nil

	case []any:
		for _, item := range v {
			itemKey := key
			if arrayEncoding == ArrayEncodingBrackets {
				itemKey = key + "[]"
			}

			if err := flattenFormValue(values, itemKey, item, arrayEncoding, boolEncoding); err != nil {
				return err
			}
		}

		return nil

	case []string:
		for _, item := range v {
			itemKey := key
			if arrayEncoding == ArrayEncodingBrackets {
				itemKey = key + "[]"
			}

			values.Add(itemKey, item)
		}

		return nil

	case bool:
		values.Add(key, encodeFormBool(v, boolEncoding))

		return nil

	case nil:
		values.Add(key, "")

		return nil

	default:
		values.Add(key, fmt.Sprint(v))

		return nil
	}
}

func encodeFormBool(v bool, encoding BoolEncoding) string {
	if encoding == BoolEncodingLiteral {
		return strconv.FormatBool(v)
	}

	if v {
		return "1"
	}

	return "0"
}

// decodeForm parses an encoded form body back into a multiset of key/value
// pairs, used by tests to verify the encode/decode round trip.
func decodeForm(encoded string) (map[string][]string, error) {
	values, err := url.ParseQuery(encoded)
	if err != nil {
		return nil, err
	}

	return map[string][]string(values), nil
}

// mergeQuery merges client and request query items: client items are
// prepended to request items, preserving order, duplicates allowed.
func mergeQuery(clientItems, requestItems []QueryItem) []QueryItem {
	merged := make([]QueryItem, 0, len(clientItems)+len(requestItems))
	merged = append(merged, clientItems...)
	merged = append(merged, requestItems...)

	return merged
}

// encodeQueryItems percent-encodes and joins query items, independently
// encoding names and values.
func encodeQueryItems(items []QueryItem) string {
	if len(items) == 0 {
		return ""
	}

	var b strings.Builder

	for i, item := range items {
		if i > 0 {
			b.WriteByte('&')
		}

		b.WriteString(url.QueryEscape(item.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(item.Value))
	}

	return b.String()
}
