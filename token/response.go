package token

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
)

// ParseResponse decodes a token endpoint body into the raw field mapping New
// expects. JSON is the norm; some providers still answer with
// application/x-www-form-urlencoded or text/plain bodies.
func ParseResponse(body []byte, contentType string) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)

	switch mediaType {
	case "application/x-www-form-urlencoded", "text/plain":
		return parseForm(body)
	case "application/json", "":
		return parseJSON(body)
	default:
		// Unknown media types are sniffed rather than rejected.
		if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
			return parseJSON(body)
		}
		return parseForm(body)
	}
}

func parseJSON(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("failed to decode token response: body is null")
	}
	return raw, nil
}

func parseForm(body []byte) (map[string]any, error) {
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	raw := make(map[string]any, len(vals))
	for k := range vals {
		raw[k] = vals.Get(k)
	}
	return raw, nil
}
