// Package codec translates item payloads to and from the string values stored
// in the synchronization log. The log stores raw text, and the convention is
// that each value holds a single JSON-encoded string literal (or JSON null for
// a deleted item), so payloads survive verbatim including embedded special
// characters.
package codec

import (
	"encoding/json"
	"fmt"
)

// DeletionMarker is the raw value written to the log to mark an item as
// deleted.
const DeletionMarker = "null"

// Encode converts a raw payload into the log's value format: the JSON string
// literal encoding of the payload, without surrounding brackets or quotes
// beyond the literal itself.
func Encode(payload []byte) string {
	// Serializing a one-element array and stripping the brackets leaves
	// exactly the inner string literal, which is what the log stores.
	out, err := json.Marshal([]string{string(payload)})
	if err != nil {
		// A []string cannot fail to marshal; keep the error path explicit
		// anyway so a future payload type change doesn't panic silently.
		panic(fmt.Sprintf("codec: marshal payload: %v", err))
	}
	return string(out[1 : len(out)-1])
}

// Decode converts a stored value back into payload bytes. The second return
// value reports whether the item is present: a JSON null value means the item
// was deleted and yields (nil, false, nil). An empty JSON string decodes to a
// zero-length payload that is still present.
//
// The stored value is a bare JSON scalar, not a full document, so it is
// wrapped in brackets to form a one-element array before parsing. Values that
// do not parse as a JSON string or null are reported as errors, never passed
// through as literal text.
func Decode(value string) ([]byte, bool, error) {
	wrapped := make([]byte, 0, len(value)+2)
	wrapped = append(wrapped, '[')
	wrapped = append(wrapped, value...)
	wrapped = append(wrapped, ']')

	var arr []*string
	if err := json.Unmarshal(wrapped, &arr); err != nil {
		return nil, false, fmt.Errorf("malformed log value %q: %w", value, err)
	}
	if len(arr) != 1 {
		return nil, false, fmt.Errorf("malformed log value %q: expected a single scalar", value)
	}
	if arr[0] == nil {
		return nil, false, nil
	}
	return []byte(*arr[0]), true, nil
}
