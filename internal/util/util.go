// Package util holds small helpers for keeping credentials out of logs.
package util

import (
	"net/url"
	"strings"
)

// HideSecret obscures a credential for logging, keeping only a few leading
// and trailing characters.
func HideSecret(secret string) string {
	switch n := len(secret); {
	case n > 16:
		return secret[:6] + "..." + secret[n-4:]
	case n > 8:
		return secret[:2] + "..." + secret[n-2:]
	case n > 0:
		return "***"
	default:
		return ""
	}
}

// MaskSensitiveQuery masks credential-like query parameters within a raw
// query string, e.g. token=..., password=... or pinCode=....
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		keyPart, valuePart, _ := strings.Cut(part, "=")
		decodedKey, err := url.QueryUnescape(keyPart)
		if err != nil {
			decodedKey = keyPart
		}
		if !shouldMaskQueryParam(decodedKey) {
			continue
		}
		decodedValue, err := url.QueryUnescape(valuePart)
		if err != nil {
			decodedValue = valuePart
		}
		parts[i] = keyPart + "=" + url.QueryEscape(HideSecret(strings.TrimSpace(decodedValue)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func shouldMaskQueryParam(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	key = strings.TrimSuffix(key, "[]")
	for _, marker := range []string{"token", "secret", "password", "pin", "fingerprint"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
