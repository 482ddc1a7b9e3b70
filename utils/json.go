package utils

import (
	"encoding/json"
	"io"
)

// WriteIndentedJSON writes input as two-space indented JSON followed by a newline.
func WriteIndentedJSON[T any](w io.Writer, input T) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(input)
}
