package core

import (
	"net/url"
	"strings"
)

// CanonicalURL normalizes an article or feed item URL: trims whitespace,
// lowercases the scheme and host and drops the fragment. Only absolute
// http/https URLs are accepted.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", NewError(KindInvalidRequest, "empty URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", WrapError(KindInvalidRequest, "malformed URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", NewError(KindInvalidRequest, "URL scheme must be http or https")
	}
	if u.Host == "" {
		return "", NewError(KindInvalidRequest, "URL has no host")
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	return u.String(), nil
}
