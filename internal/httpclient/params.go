package httpclient

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// AddParams appends params to baseURL as a query string. baseURL is used
// verbatim; keys are kept as-is and each value is percent-encoded on its own.
// Keys are written in sorted order so the result is stable.
func AddParams(baseURL string, params map[string]any) string {
	if len(params) == 0 {
		return baseURL
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf strings.Builder
	buf.WriteString(baseURL)
	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
		if strings.HasSuffix(baseURL, "?") || strings.HasSuffix(baseURL, "&") {
			sep = ""
		}
	}
	for _, k := range keys {
		buf.WriteString(sep)
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(encodeValue(params[k]))
		sep = "&"
	}
	return buf.String()
}

// encodeValue percent-encodes v, using %20 for spaces
func encodeValue(v any) string {
	var s string
	switch vv := v.(type) {
	case nil:
		s = ""
	case string:
		s = vv
	case fmt.Stringer:
		s = vv.String()
	default:
		s = fmt.Sprint(vv)
	}
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
