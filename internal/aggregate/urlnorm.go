package aggregate

import (
	"net/url"
	"strings"
)

var trackingParamPrefixes = []string{"utm_", "fbclid", "gclid", "mc_cid", "mc_eid"}

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	for _, p := range trackingParamPrefixes {
		if strings.HasPrefix(k, p) {
			return true
		}
	}
	return false
}

// CanonicalURL strips tracking query parameters, the fragment and any
// trailing slash, and lowercases the host. Unparseable input is
// returned as-is.
func CanonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if isTrackingParam(key) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	s := u.String()
	return strings.TrimSuffix(s, "/")
}

// DedupKey is the canonical URL minus scheme and a leading www., so
// http/https and www variants of one article collapse together.
func DedupKey(raw string) string {
	s := CanonicalURL(raw)
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(s, prefix) {
			s = s[len(prefix):]
			break
		}
	}
	return strings.TrimPrefix(s, "www.")
}
