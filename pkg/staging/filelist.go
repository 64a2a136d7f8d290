package staging

import (
	"strings"

	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/types"
)

// EncodeFilelist serializes coordinates of uploaded artifacts, one per line.
func EncodeFilelist(artifacts []types.RemoteArtifact) []byte {
	lines := lo.Map(artifacts, func(a types.RemoteArtifact, _ int) string {
		return a.Coordinate.String()
	})
	return []byte(strings.Join(lines, "\n"))
}

// DecodeFilelist parses a filelist into artifacts of repoID. Blank lines are skipped.
func DecodeFilelist(repoID string, data []byte) ([]types.RemoteArtifact, error) {
	var artifacts []types.RemoteArtifact
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		a, err := types.NewRemoteArtifact(repoID, line)
		if err != nil {
			return nil, xerrors.Errorf("filelist of %s, line %d: %w", repoID, i+1, err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}
