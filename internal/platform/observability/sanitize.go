package observability

import "unicode"

// sanitizeString strips control characters and caps length so untrusted
// input cannot inject structured-log fields.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	out := make([]rune, 0, len(value))
	for _, r := range value {
		switch {
		case r == '\n', r == '\r', r == '\t':
			out = append(out, r)
		case unicode.IsControl(r):
		default:
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return string(out)
}

// SanitizeRoute bounds route patterns before they reach logs or spans.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod bounds HTTP method strings.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}
