// Package ulid provides a thin, type-safe wrapper around
// github.com/oklog/ulid/v2 with prefixes and database/json integration.
// ULIDs identify rows in the local PIM store; they are lexicographically
// sortable by creation time, which suits the store's indexes. Remote item
// identifiers are never ULIDs — those belong to whichever side created the
// entry.
package ulid

import (
	"crypto/rand"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Common prefixes for different parts of the application
const (
	// PrefixCollection is used for stored collection rows
	PrefixCollection = "col"

	// PrefixItem is used for stored item rows
	PrefixItem = "item"

	// PrefixChange is used for recorded pending changes
	PrefixChange = "chg"

	// PrefixSeparator is used to separate the prefix from the ULID
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// ULID is a custom type that wraps ulid.ULID with an optional prefix.
type ULID struct {
	ulid.ULID
	prefix string
}

// Generate creates a new ULID with the current timestamp.
func Generate() ULID {
	return NewWithTime(time.Now())
}

// GenerateWithPrefix creates a new ULID with the current timestamp and a
// prefix giving context about what the ID represents (e.g., "col" for a
// collection row).
func GenerateWithPrefix(prefix string) ULID {
	id := NewWithTime(time.Now())
	id.prefix = prefix
	return id
}

// NewWithTime creates a new ULID with a specific timestamp.
func NewWithTime(t time.Time) ULID {
	entropyLock.Lock()
	id := ulid.MustNew(ulid.Timestamp(t), entropy)
	entropyLock.Unlock()
	return ULID{id, ""}
}

// Parse parses a ULID string, handling both plain and prefixed forms
// (e.g., "col-01AN4Z07BY79KA1307SR9X4MV3").
func Parse(id string) (ULID, error) {
	var rawID, prefix string

	if idx := strings.LastIndex(id, PrefixSeparator); idx >= 0 {
		prefix = id[:idx]
		rawID = id[idx+1:]
	} else {
		rawID = id
	}

	parsed, err := ulid.Parse(rawID)
	if err != nil {
		return ULID{}, err
	}

	return ULID{parsed, prefix}, nil
}

// Validate checks if a string is a valid, optionally prefixed ULID.
func Validate(id string) bool {
	_, err := Parse(id)
	return err == nil
}

// IsZero returns true if the ULID is the zero value.
func (u ULID) IsZero() bool {
	return u.ULID == ulid.ULID{}
}

// Prefix returns the prefix of the ULID.
func (u ULID) Prefix() string {
	return u.prefix
}

// String returns the string representation, including the prefix if set.
func (u ULID) String() string {
	if u.prefix == "" {
		return u.ULID.String()
	}
	return u.prefix + PrefixSeparator + u.ULID.String()
}

// Value implements driver.Valuer for database storage.
func (u ULID) Value() (driver.Value, error) {
	return u.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (u *ULID) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := Parse(v)
		if err != nil {
			return err
		}
		*u = parsed
		return nil
	case []byte:
		return u.Scan(string(v))
	case nil:
		*u = ULID{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ULID", src)
	}
}

// MarshalJSON implements json.Marshaler.
func (u ULID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *ULID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
