package artifact

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/types"
)

// name is everything before the first hyphen followed by a digit, the version runs from that digit
// to the last dot and the extension is the last dot-segment.
// e.g. `update-hostname-0.1.4-1.el6.noarch.rpm` => update-hostname, 0.1.4-1.el6.noarch, rpm
var nameVersionExt = regexp.MustCompile(`^(.*?)-(\d.*)\.([^.]+)$`)

// Options holds the coordinates explicitly supplied by the caller.
// Empty fields are detected by Detector.
type Options struct {
	Group      string
	Artifact   string
	Version    string
	Classifier string
	Extension  string

	// Detector defaults to FromFilename.
	Detector Detector
}

// Resolve creates a local artifact for path, detecting missing coordinates.
func Resolve(path string, opts Options) (types.LocalArtifact, error) {
	detector := opts.Detector
	if detector == nil {
		detector = FromFilename{}
	}

	detected, err := detector.Detect(path, opts)
	if err != nil {
		return types.LocalArtifact{}, xerrors.Errorf("unable to detect coordinates of %s: %w", path, err)
	}

	c := types.Coordinate{
		Group:      firstNonEmpty(opts.Group, detected.Group),
		Artifact:   firstNonEmpty(opts.Artifact, detected.Artifact),
		Version:    firstNonEmpty(opts.Version, detected.Version),
		Classifier: firstNonEmpty(opts.Classifier, detected.Classifier),
		Extension:  firstNonEmpty(opts.Extension, detected.Extension),
	}
	if c.Group == "" {
		return types.LocalArtifact{}, xerrors.Errorf("group of %s is required: %w", path, types.ErrInvalidArgument)
	}
	if c.Artifact == "" || c.Version == "" {
		return types.LocalArtifact{}, xerrors.Errorf("artifact and version of %s are unknown: %w", path,
			types.ErrNameVersionDetection)
	}

	slog.Debug("Local artifact", slog.String("path", path), slog.String("coordinates", c.String()))
	return types.LocalArtifact{
		Coordinate: c,
		LocalPath:  path,
	}, nil
}

// DetectNameVersion splits a file name into artifact name, version and extension.
func DetectNameVersion(path string) (string, string, string, error) {
	base := filepath.Base(path)
	m := nameVersionExt.FindStringSubmatch(base)
	if m == nil {
		return "", "", "", xerrors.Errorf("automatic detection of name and/or version failed for %s: %w", path,
			types.ErrNameVersionDetection)
	}
	return m[1], m[2], m[3], nil
}

// extension returns the last dot-segment of the file name.
func extension(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
