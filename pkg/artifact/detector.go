package artifact

import (
	"net/url"
	"slices"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/types"
)

// Detector derives the coordinates the caller didn't supply.
type Detector interface {
	Detect(path string, opts Options) (types.Coordinate, error)
}

var (
	_ Detector = FromFilename{}
	_ Detector = FromPackageMetadata{}
)

// FromFilename detects artifact, version and extension from `<name>-<version>.<extension>`.
// The file name is only parsed when artifact or version is missing.
type FromFilename struct{}

func (FromFilename) Detect(path string, opts Options) (types.Coordinate, error) {
	if opts.Artifact != "" && opts.Version != "" {
		return types.Coordinate{Extension: extension(path)}, nil
	}

	name, version, ext, err := DetectNameVersion(path)
	if err != nil {
		return types.Coordinate{}, err
	}
	return types.Coordinate{
		Artifact:  name,
		Version:   version,
		Extension: ext,
	}, nil
}

// PackageHeaders holds the package header fields used for detection.
type PackageHeaders struct {
	Name    string
	Version string
	Release string
	URL     string
}

// PackageReader reads headers of a native package file.
type PackageReader interface {
	ReadPackageHeaders(path string) (PackageHeaders, error)
}

// FromPackageMetadata detects coordinates from package headers instead of the file name.
// The group comes from the homepage URL unless it's given explicitly.
type FromPackageMetadata struct {
	Reader PackageReader
}

func (d FromPackageMetadata) Detect(path string, opts Options) (types.Coordinate, error) {
	reader := d.Reader
	if reader == nil {
		reader = RPMReader{}
	}
	headers, err := reader.ReadPackageHeaders(path)
	if err != nil {
		return types.Coordinate{}, xerrors.Errorf("unable to read package headers: %w", err)
	}

	group := opts.Group
	if group == "" {
		if group, err = GroupFromURL(headers.URL); err != nil {
			return types.Coordinate{}, err
		}
	}

	version := headers.Version
	if headers.Release != "" {
		version += "-" + headers.Release
	}
	return types.Coordinate{
		Group:     group,
		Artifact:  headers.Name,
		Version:   version,
		Extension: extension(path),
	}, nil
}

// GroupFromURL reverses the host labels of rawURL and drops `www`,
// e.g. `https://www.fooware.com/foo` => `com.fooware`.
func GroupFromURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", xerrors.Errorf("the package has no URL tag: %w", types.ErrMissingPackageURL)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", xerrors.Errorf("invalid package URL %q: %w", rawURL, err)
	}
	host := u.Hostname()
	if host == "" {
		return "", xerrors.Errorf("package URL %q has no host: %w", rawURL, types.ErrMissingPackageURL)
	}

	labels := lo.Filter(strings.Split(host, "."), func(label string, _ int) bool {
		return label != "www"
	})
	slices.Reverse(labels)
	return strings.Join(labels, "."), nil
}
