package decsync

import (
	"os"
	"strings"
)

// appIDNamespace tags entries written through this bridge, keeping them apart
// from entries written by other clients of the same storage directory.
const appIDNamespace = "decbridge"

// DeriveAppID builds the stable per-install identifier used to name this
// app's entry log: namespace, hostname and a configured instance name. The
// instance name distinguishes multiple installs on one host and is persisted
// in settings so the identifier survives restarts.
func DeriveAppID(instanceName string) string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown-host"
	}

	parts := []string{appIDNamespace, hostname}
	if instanceName != "" {
		parts = append(parts, instanceName)
	}
	return sanitizeFileName(strings.Join(parts, "-"))
}
