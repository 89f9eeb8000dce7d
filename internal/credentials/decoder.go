package credentials

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrCallFailed means the key creation call itself failed.
	ErrCallFailed = errors.New("api key creation call failed")
	// ErrPayloadUnparsable means the call succeeded but no key string could be
	// read from its response.
	ErrPayloadUnparsable = errors.New("api key payload unparsable")
)

// Decoder extracts an API key from the payload returned by key creation.
type Decoder interface {
	Decode(payload []byte) (APIKey, error)
}

// JSONDecoder reads the keyString and name fields of a JSON key resource.
// The payload must be a single well-formed JSON object.
type JSONDecoder struct{}

type keyResource struct {
	Name      string  `json:"name"`
	KeyString *string `json:"keyString"`
}

// Decode implements Decoder.
func (JSONDecoder) Decode(payload []byte) (APIKey, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))

	var res keyResource
	if err := dec.Decode(&res); err != nil {
		return APIKey{}, fmt.Errorf("%w: %w", ErrPayloadUnparsable, err)
	}
	if dec.More() {
		return APIKey{}, fmt.Errorf("%w: trailing data after key resource", ErrPayloadUnparsable)
	}
	if res.KeyString == nil {
		return APIKey{}, fmt.Errorf("%w: keyString field missing", ErrPayloadUnparsable)
	}
	if strings.TrimSpace(*res.KeyString) == "" {
		return APIKey{}, fmt.Errorf("%w: keyString field empty", ErrPayloadUnparsable)
	}

	return APIKey{Value: *res.KeyString, Name: res.Name}, nil
}

var (
	defaultKeyPattern  = regexp.MustCompile(`"?keyString"?\s*[:=]\s*"?([A-Za-z0-9_\-]+)`)
	defaultNamePattern = regexp.MustCompile(`(projects/[^/\s"]+/locations/[^/\s"]+/keys/[A-Za-z0-9_\-]+)`)
)

// PatternDecoder scans arbitrary text for the key string. It accepts payloads
// that are not valid JSON, such as CLI output or truncated responses.
type PatternDecoder struct {
	// KeyPattern must capture the key in its first group.
	KeyPattern *regexp.Regexp
}

// Decode implements Decoder.
func (d PatternDecoder) Decode(payload []byte) (APIKey, error) {
	pattern := d.KeyPattern
	if pattern == nil {
		pattern = defaultKeyPattern
	}

	m := pattern.FindSubmatch(payload)
	if len(m) < 2 || len(m[1]) == 0 {
		return APIKey{}, fmt.Errorf("%w: no key string found", ErrPayloadUnparsable)
	}

	key := APIKey{Value: string(m[1])}
	if name := defaultNamePattern.FindSubmatch(payload); len(name) > 1 {
		key.Name = string(name[1])
	}
	return key, nil
}

// SelectDecoder returns the strict decoder for well-formed JSON and the
// pattern decoder otherwise.
func SelectDecoder(payload []byte) Decoder {
	if json.Valid(payload) {
		return JSONDecoder{}
	}
	return PatternDecoder{}
}

// AutoDecoder picks a decoder per payload with SelectDecoder.
type AutoDecoder struct{}

// Decode implements Decoder.
func (AutoDecoder) Decode(payload []byte) (APIKey, error) {
	return SelectDecoder(payload).Decode(payload)
}
