package artifact_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/artifact"
	"github.com/repositorytools/repositorytools/pkg/types"
)

func TestDetectNameVersion(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		wantName    string
		wantVersion string
		wantExt     string
		wantErr     bool
	}{
		{
			name:        "simple",
			path:        "my_local_path/devbox-2.0.0.tgz",
			wantName:    "devbox",
			wantVersion: "2.0.0",
			wantExt:     "tgz",
		},
		{
			name:        "digit inside name",
			path:        "my_local_path/python-foo2-2.3.4.ext",
			wantName:    "python-foo2",
			wantVersion: "2.3.4",
			wantExt:     "ext",
		},
		{
			name:        "hyphen inside version",
			path:        "my_local_path/infra-6.6-4.tgz",
			wantName:    "infra",
			wantVersion: "6.6-4",
			wantExt:     "tgz",
		},
		{
			name:        "rpm",
			path:        "my_local_path/update-hostname-0.1.4-1.el6.noarch.rpm",
			wantName:    "update-hostname",
			wantVersion: "0.1.4-1.el6.noarch",
			wantExt:     "rpm",
		},
		{
			name:        "txt",
			path:        "my_local_path/test-1.0.txt",
			wantName:    "test",
			wantVersion: "1.0",
			wantExt:     "txt",
		},
		{
			name:    "no hyphen followed by digit",
			path:    "my_local_path/foo2bar.tgz",
			wantErr: true,
		},
		{
			name:    "no extension",
			path:    "my_local_path/devbox-2",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, version, ext, err := artifact.DetectNameVersion(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, types.ErrNameVersionDetection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantVersion, version)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		opts    artifact.Options
		want    types.Coordinate
		wantErr error
	}{
		{
			name: "detect from filename",
			path: "dist/devbox-2.0.0.tgz",
			opts: artifact.Options{Group: "com.fooware"},
			want: types.Coordinate{Group: "com.fooware", Artifact: "devbox", Version: "2.0.0", Extension: "tgz"},
		},
		{
			name: "explicit artifact and version skip detection",
			path: "dist/devbox.tgz",
			opts: artifact.Options{Group: "com.fooware", Artifact: "box", Version: "1"},
			want: types.Coordinate{Group: "com.fooware", Artifact: "box", Version: "1", Extension: "tgz"},
		},
		{
			name: "explicit version overrides detected one",
			path: "dist/devbox-2.0.0.tgz",
			opts: artifact.Options{Group: "com.fooware", Version: "3.0.0", Classifier: "linux", Extension: "tar.gz"},
			want: types.Coordinate{Group: "com.fooware", Artifact: "devbox", Version: "3.0.0", Classifier: "linux", Extension: "tar.gz"},
		},
		{
			name:    "undetectable name",
			path:    "dist/devbox.tgz",
			opts:    artifact.Options{Group: "com.fooware"},
			wantErr: types.ErrNameVersionDetection,
		},
		{
			name:    "missing group",
			path:    "dist/devbox-2.0.0.tgz",
			wantErr: types.ErrInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := artifact.Resolve(tt.path, tt.opts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Coordinate)
			assert.Equal(t, tt.path, got.LocalPath)
		})
	}
}

var errNotRPM = xerrors.New("not an rpm")

type fakeReader struct {
	headers artifact.PackageHeaders
	err     error
}

func (r fakeReader) ReadPackageHeaders(string) (artifact.PackageHeaders, error) {
	return r.headers, r.err
}

func TestResolve_FromPackageMetadata(t *testing.T) {
	headers := artifact.PackageHeaders{
		Name:    "update-hostname",
		Version: "0.1.4",
		Release: "1.el6",
		URL:     "https://www.fooware.com/update-hostname",
	}
	tests := []struct {
		name    string
		opts    artifact.Options
		reader  fakeReader
		want    types.Coordinate
		wantErr error
	}{
		{
			name:   "group from url",
			reader: fakeReader{headers: headers},
			want:   types.Coordinate{Group: "com.fooware", Artifact: "update-hostname", Version: "0.1.4-1.el6", Extension: "rpm"},
		},
		{
			name:   "explicit group wins",
			opts:   artifact.Options{Group: "org.example"},
			reader: fakeReader{headers: artifact.PackageHeaders{Name: "foo", Version: "1.0", Release: "2"}},
			want:   types.Coordinate{Group: "org.example", Artifact: "foo", Version: "1.0-2", Extension: "rpm"},
		},
		{
			name:    "no url and no group",
			reader:  fakeReader{headers: artifact.PackageHeaders{Name: "foo", Version: "1.0", Release: "2"}},
			wantErr: types.ErrMissingPackageURL,
		},
		{
			name:    "unreadable package",
			reader:  fakeReader{err: errNotRPM},
			wantErr: errNotRPM,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.Detector = artifact.FromPackageMetadata{Reader: tt.reader}

			// the file name carries no version, detection must not look at it
			got, err := artifact.Resolve("dist/some-package.rpm", opts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Coordinate)
		})
	}
}

func TestGroupFromURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://www.fooware.com/foo", want: "com.fooware"},
		{url: "http://tools.fooware.co.uk", want: "uk.co.fooware.tools"},
		{url: "https://fooware.com:8443/x", want: "com.fooware"},
		{url: "", wantErr: true},
		{url: "not-a-url", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := artifact.GroupFromURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
