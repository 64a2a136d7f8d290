package types

import (
	"fmt"
	"strings"

	"golang.org/x/xerrors"
)

const coordinateFields = 5

// Coordinate identifies an artifact by group, artifact, version, classifier and extension.
// Empty strings mean "unset".
type Coordinate struct {
	Group      string `json:"groupId"`
	Artifact   string `json:"artifactId"`
	Version    string `json:"version"`
	Classifier string `json:"classifier,omitempty"`
	Extension  string `json:"extension,omitempty"`
}

// ParseCoordinate parses `group:artifact:version[:classifier[:extension]]`.
// Fields after the fifth are ignored.
func ParseCoordinate(s string) (Coordinate, error) {
	ss := strings.Split(s, ":")
	if len(ss) < 3 {
		return Coordinate{}, xerrors.Errorf("%q has %d field(s), group, artifact and version are obligatory: %w",
			s, len(ss), ErrMalformedCoordinates)
	}
	if ss[0] == "" || ss[1] == "" || ss[2] == "" {
		return Coordinate{}, xerrors.Errorf("%q has an empty group, artifact or version: %w", s, ErrMalformedCoordinates)
	}

	c := Coordinate{
		Group:    ss[0],
		Artifact: ss[1],
		Version:  ss[2],
	}
	if len(ss) > 3 {
		c.Classifier = ss[3]
	}
	if len(ss) > 4 {
		c.Extension = ss[4]
	}
	return c, nil
}

// String always returns five colon-separated fields.
func (c Coordinate) String() string {
	return strings.Join([]string{c.Group, c.Artifact, c.Version, c.Classifier, c.Extension}, ":")
}

// GroupPath returns the group as a repository path, e.g. `com/example`.
func (c Coordinate) GroupPath() string {
	return strings.ReplaceAll(c.Group, ".", "/")
}

// Filename returns the maven2 layout file name: artifact-version[-classifier][.extension]
func (c Coordinate) Filename() string {
	name := c.Artifact + "-" + c.Version
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}
	if c.Extension != "" {
		name += "." + c.Extension
	}
	return name
}

// LocalArtifact is a file on the local machine with the coordinates it will be uploaded under.
type LocalArtifact struct {
	Coordinate
	LocalPath string `json:"localPath"`
}

// RemoteArtifact is an artifact as known to the repository server.
// URL is empty until the artifact is uploaded or resolved.
type RemoteArtifact struct {
	Coordinate
	URL    string `json:"url,omitempty"`
	RepoID string `json:"repoId,omitempty"`
}

// NewRemoteArtifact creates an unresolved artifact in repoID from a coordinate string.
func NewRemoteArtifact(repoID, coordinates string) (RemoteArtifact, error) {
	c, err := ParseCoordinate(coordinates)
	if err != nil {
		return RemoteArtifact{}, err
	}
	return RemoteArtifact{
		Coordinate: c,
		RepoID:     repoID,
	}, nil
}

func (a RemoteArtifact) String() string {
	if a.RepoID == "" {
		return a.Coordinate.String()
	}
	return fmt.Sprintf("%s@%s", a.Coordinate, a.RepoID)
}

// StagingRepo is a staging repository descriptor as returned by the server.
// Keys are kept verbatim so that list filters can match on any field.
type StagingRepo map[string]any

// ID returns the `repositoryId` field.
func (r StagingRepo) ID() string {
	id, _ := r["repositoryId"].(string)
	return id
}

// StagingProfile is a named target configuration that staging repositories are created against.
type StagingProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
