package metadata_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repositorytools/repositorytools/pkg/metadata"
	"github.com/repositorytools/repositorytools/pkg/types"
)

func TestEncode(t *testing.T) {
	p := metadata.Encode(metadata.Metadata{"b": "2", "a": "1"})
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"key":"a","value":"1"},{"key":"b","value":"2"}]}`, string(b))

	got, err := metadata.Decode(p)
	require.NoError(t, err)
	assert.Equal(t, metadata.Metadata{"a": "1", "b": "2"}, got)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    metadata.Metadata
		wantErr error
	}{
		{
			name: "happy path",
			body: `{"data":[{"key":"owner","value":"infra"},{"key":"ticket","value":""}]}`,
			want: metadata.Metadata{"owner": "infra", "ticket": ""},
		},
		{
			name: "extra fields are ignored",
			body: `{"data":[{"key":"owner","value":"infra","readOnly":false}]}`,
			want: metadata.Metadata{"owner": "infra"},
		},
		{
			name: "empty",
			body: `{"data":[]}`,
			want: metadata.Metadata{},
		},
		{
			name:    "missing value",
			body:    `{"data":[{"key":"owner"}]}`,
			wantErr: types.ErrMalformedMetadata,
		},
		{
			name:    "missing key",
			body:    `{"data":[{"value":"infra"}]}`,
			wantErr: types.ErrMalformedMetadata,
		},
		{
			name:    "number value",
			body:    `{"data":[{"key":"build","value":1}]}`,
			wantErr: types.ErrMalformedMetadata,
		},
		{
			name:    "null key",
			body:    `{"data":[{"key":null,"value":"infra"}]}`,
			wantErr: types.ErrMalformedMetadata,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p metadata.Payload
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))

			got, err := metadata.Decode(p)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    metadata.Metadata
		wantErr error
	}{
		{
			name:  "flat string map",
			input: `{"key1":"value1","key2":"value2"}`,
			want:  metadata.Metadata{"key1": "value1", "key2": "value2"},
		},
		{
			name:    "number value",
			input:   `{"key1":1}`,
			wantErr: types.ErrInvalidArgument,
		},
		{
			name:    "nested object",
			input:   `{"key1":{"a":"b"}}`,
			wantErr: types.ErrInvalidArgument,
		},
		{
			name:    "not an object",
			input:   `"{\"key1\":\"value1\"}"`,
			wantErr: types.ErrInvalidArgument,
		},
		{
			name:    "null",
			input:   `null`,
			wantErr: types.ErrInvalidArgument,
		},
		{
			name:  "empty object",
			input: `{}`,
			want:  metadata.Metadata{},
		},
		{
			name:    "invalid json",
			input:   `{key1`,
			wantErr: types.ErrInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := metadata.Parse([]byte(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContains(t *testing.T) {
	got := metadata.Metadata{"a": "1", "b": "2"}
	assert.True(t, metadata.Contains(got, metadata.Metadata{"a": "1"}))
	assert.True(t, metadata.Contains(got, nil))
	assert.False(t, metadata.Contains(got, metadata.Metadata{"a": "2"}))
	assert.False(t, metadata.Contains(metadata.Metadata{"a": "1"}, got))
}

func TestArtifactID(t *testing.T) {
	c := types.Coordinate{Group: "com.fooware", Artifact: "foo", Version: "1.0", Extension: "tgz"}
	got := metadata.ArtifactID(c)

	decoded, err := base64.StdEncoding.DecodeString(got)
	require.NoError(t, err)
	assert.Equal(t, "urn:maven/artifact#com.fooware:foo:1.0::tgz", string(decoded))
}
