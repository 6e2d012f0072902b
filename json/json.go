// Package json pins the jsoniter configuration used for every payload that
// crosses a context boundary.
package json

import jsoniter "github.com/json-iterator/go"

var (
	// JSON is the jsoniter.API instance used throughout the codebase
	JSON = jsoniter.ConfigCompatibleWithStandardLibrary

	// Marshal is a shorthand for JSON.Marshal
	Marshal = JSON.Marshal

	// Unmarshal is a shorthand for JSON.Unmarshal
	Unmarshal = JSON.Unmarshal

	// Valid is a shorthand for JSON.Valid
	Valid = JSON.Valid
)

// RawMessage is a raw encoded JSON value, re-exported so callers do not
// need a second json import for the common envelope payload type.
type RawMessage = jsoniter.RawMessage
