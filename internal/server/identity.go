package server

import "strings"

// DetectISP guesses the ISP label from the host name. It is the fallback
// when no explicit label is configured; customize the mapping for the
// hosts the service runs on.
func DetectISP(hostname string) string {
	switch {
	// Prefix match so "smokeping" and friends stay unknown.
	case strings.HasPrefix(hostname, "pi"):
		return "fios"
	case strings.Contains(hostname, "cake"):
		return "comcast"
	default:
		return "unknown"
	}
}
