// Package utils provides small shared helpers for the CLI surface.
package utils

import (
	"strings"
	"time"

	"github.com/goombaio/namegenerator"
)

// GenerateInstanceName creates a random, memorable instance name using
// namegenerator. The instance name distinguishes installs that share a
// hostname and becomes part of the synchronization app ID.
func GenerateInstanceName() string {
	seed := time.Now().UTC().UnixNano()
	nameGenerator := namegenerator.NewNameGenerator(seed)

	// Generate a name like "wispy-dust"
	name := nameGenerator.Generate()

	// Some names might have underscores; convert to hyphens for consistency
	name = strings.ReplaceAll(name, "_", "-")

	return name
}

// TruncateString shortens a string for table display, appending an ellipsis
// when it was cut.
func TruncateString(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
