package nexus

import (
	"context"
	"net/http"

	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/metadata"
	"github.com/repositorytools/repositorytools/pkg/types"
)

// GetArtifactMetadata returns custom metadata of the artifact in its repository.
// The metadata capability and indexing have to be enabled for the repository.
func (c *Client) GetArtifactMetadata(ctx context.Context, a types.RemoteArtifact) (metadata.Metadata, error) {
	var p metadata.Payload
	if err := c.sendJSON(ctx, http.MethodGet, c.metadataURL(a), nil, &p); err != nil {
		return nil, xerrors.Errorf("unable to get metadata of %s: %w", a, err)
	}

	m, err := metadata.Decode(p)
	if err != nil {
		return nil, xerrors.Errorf("artifact %s: %w", a, err)
	}
	return m, nil
}

// SetArtifactMetadata writes custom metadata of the artifact in its repository.
func (c *Client) SetArtifactMetadata(ctx context.Context, a types.RemoteArtifact, m metadata.Metadata) error {
	if m == nil {
		return xerrors.Errorf("metadata of %s is nil: %w", a, types.ErrInvalidArgument)
	}
	if err := c.sendJSON(ctx, http.MethodPost, c.metadataURL(a), metadata.Encode(m), nil); err != nil {
		return xerrors.Errorf("unable to set metadata of %s: %w", a, err)
	}
	return nil
}

func (c *Client) metadataURL(a types.RemoteArtifact) string {
	return c.endpoint("service/local/index/custom_metadata", a.RepoID, metadata.ArtifactID(a.Coordinate))
}
