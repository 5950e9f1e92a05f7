package identity

import (
	"errors"
	"net"
	"strings"

	"pecportal/internal/config"
	"pecportal/internal/platform/supabase"
)

// offlineSignatures are error fragments that mean the backend is unreachable or misconfigured.
var offlineSignatures = []string{
	"failed to fetch",
	"network",
	"no such host",
	"connection refused",
	"invalid api key",
	"no api key",
	"api key is missing",
	strings.TrimPrefix(config.PlaceholderBackendURL, "https://"),
}

// IsOffline reports whether err looks like an unreachable or misconfigured backend
// rather than a genuine authentication failure. It is a heuristic over error text.
func IsOffline(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, supabase.ErrMissingAPIKey) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range offlineSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
