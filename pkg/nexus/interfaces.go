package nexus

import (
	"context"
	"io"

	"github.com/repositorytools/repositorytools/pkg/metadata"
	"github.com/repositorytools/repositorytools/pkg/types"
)

// Repository is the artifact capability every repository server has.
type Repository interface {
	ResolveArtifact(ctx context.Context, a *types.RemoteArtifact) error
	UploadArtifacts(ctx context.Context, artifacts []types.LocalArtifact, repoID string) ([]types.RemoteArtifact, error)
	DeleteArtifact(ctx context.Context, url string) error
	FetchArtifact(ctx context.Context, url string, w io.Writer) (int64, error)
}

// MetadataStore is the custom metadata capability.
type MetadataStore interface {
	GetArtifactMetadata(ctx context.Context, a types.RemoteArtifact) (metadata.Metadata, error)
	SetArtifactMetadata(ctx context.Context, a types.RemoteArtifact, m metadata.Metadata) error
}

// Stager is the staging repository capability.
type Stager interface {
	CreateStagingRepo(ctx context.Context, profileName, description string) (string, error)
	UploadArtifactsToStaging(ctx context.Context, artifacts []types.LocalArtifact, repoID string) ([]types.RemoteArtifact, error)
	PutFilelist(ctx context.Context, repoID string, data []byte) error
	GetFilelist(ctx context.Context, repoID string) ([]byte, error)
	CloseStagingRepos(ctx context.Context, description string, repoIDs ...string) error
	DropStagingRepos(ctx context.Context, description string, repoIDs ...string) error
	PromoteStagingRepos(ctx context.Context, description string, autoDrop bool, repoIDs ...string) error
	ListStagingRepos(ctx context.Context, filter map[string]any) ([]types.StagingRepo, error)
	StagingRepoTarget(ctx context.Context, repoID string) (string, error)
}
