package apihandlers

import (
	"encoding/json"

	"mtserver/internal/imageloader"
)

func sourcesFromStrings(refs []string) []imageloader.Source {
	out := make([]imageloader.Source, len(refs))
	for i, r := range refs {
		out[i] = imageloader.FromString(r)
	}
	return out
}

// rawJSON embeds stored JSON as-is; invalid bytes fall back to a string.
func rawJSON(b []byte) any {
	if json.Valid(b) {
		return json.RawMessage(b)
	}
	return string(b)
}
