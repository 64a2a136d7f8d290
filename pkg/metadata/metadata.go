package metadata

import (
	"encoding/base64"
	"encoding/json"
	"slices"

	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/types"
)

const urnPrefix = "urn:maven/artifact#"

// Metadata is custom key-value metadata attached to one artifact in one repository.
type Metadata map[string]string

// Entry is a single key-value pair on the wire.
// Fields are untyped so that Decode reports missing and non-string fields itself.
type Entry struct {
	Key   any `json:"key"`
	Value any `json:"value"`
}

// Payload is the request and response body of the custom metadata endpoint.
type Payload struct {
	Data []Entry `json:"data"`
}

// Encode converts metadata into its wire form. Entries are sorted by key.
func Encode(m Metadata) Payload {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return Payload{
		Data: lo.Map(keys, func(k string, _ int) Entry {
			return Entry{Key: k, Value: m[k]}
		}),
	}
}

// Decode converts the wire form into metadata.
// An entry without a string key and a string value makes the whole payload malformed.
func Decode(p Payload) (Metadata, error) {
	m := make(Metadata, len(p.Data))
	for i, e := range p.Data {
		key, ok := e.Key.(string)
		if !ok {
			return nil, xerrors.Errorf("entry %d has key %v (%T), not a string: %w", i, e.Key, e.Key, types.ErrMalformedMetadata)
		}
		value, ok := e.Value.(string)
		if !ok {
			return nil, xerrors.Errorf("entry %d (%s) has value %v (%T), not a string: %w", i, key, e.Value, e.Value,
				types.ErrMalformedMetadata)
		}
		m[key] = value
	}
	return m, nil
}

// Parse parses a JSON object whose values all have to be strings,
// e.g. `{"key1":"value1","key2":"value2"}`.
func Parse(data []byte) (Metadata, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, xerrors.Errorf("metadata has to be a JSON object (%s): %w", err, types.ErrInvalidArgument)
	} else if raw == nil {
		return nil, xerrors.Errorf("metadata has to be a JSON object, got %s: %w", data, types.ErrInvalidArgument)
	}

	m := make(Metadata, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, xerrors.Errorf("value of %q is %T, not a string: %w", k, v, types.ErrInvalidArgument)
		}
		m[k] = s
	}
	return m, nil
}

// Contains reports whether every pair of want is present in got.
func Contains(got, want Metadata) bool {
	for k, v := range want {
		if gv, ok := got[k]; !ok || gv != v {
			return false
		}
	}
	return true
}

// ArtifactID returns the id the metadata endpoint uses for c:
// base64 of `urn:maven/artifact#group:artifact:version:classifier:extension`.
func ArtifactID(c types.Coordinate) string {
	return base64.StdEncoding.EncodeToString([]byte(urnPrefix + c.String()))
}
