package nexus

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/types"
)

type bulkRequest struct {
	Data bulkData `json:"data"`
}

type bulkData struct {
	StagedRepositoryIDs  []string `json:"stagedRepositoryIds"`
	Description          string   `json:"description"`
	AutoDropAfterRelease *bool    `json:"autoDropAfterRelease,omitempty"`
}

type startRequest struct {
	Data struct {
		Description string `json:"description"`
	} `json:"data"`
}

type startResponse struct {
	Data struct {
		StagedRepositoryID string `json:"stagedRepositoryId"`
	} `json:"data"`
}

// StagingProfiles returns all staging profiles.
func (c *Client) StagingProfiles(ctx context.Context) ([]types.StagingProfile, error) {
	var resp struct {
		Data []types.StagingProfile `json:"data"`
	}
	if err := c.sendJSON(ctx, http.MethodGet, c.endpoint("service/local/staging/profiles"), nil, &resp); err != nil {
		return nil, xerrors.Errorf("unable to list staging profiles: %w", err)
	}
	return resp.Data, nil
}

// StagingProfile returns the profile with exactly the given name.
func (c *Client) StagingProfile(ctx context.Context, name string) (types.StagingProfile, error) {
	profiles, err := c.StagingProfiles(ctx)
	if err != nil {
		return types.StagingProfile{}, err
	}
	profile, ok := lo.Find(profiles, func(p types.StagingProfile) bool {
		return p.Name == name
	})
	if !ok {
		return types.StagingProfile{}, xerrors.Errorf("no staging profile with name %q: %w", name, types.ErrProfileNotFound)
	}
	return profile, nil
}

// CreateStagingRepo opens a new staging repository in the named profile and returns its id.
func (c *Client) CreateStagingRepo(ctx context.Context, profileName, description string) (string, error) {
	profile, err := c.StagingProfile(ctx, profileName)
	if err != nil {
		return "", err
	}

	c.logger.Info("Creating staging repository", slog.String("profile", profileName),
		slog.String("description", description))
	var req startRequest
	req.Data.Description = description
	var resp startResponse
	if err = c.sendJSON(ctx, http.MethodPost, c.endpoint("service/local/staging/profiles", profile.ID, "start"), req, &resp); err != nil {
		return "", xerrors.Errorf("unable to create staging repository in %s: %w", profileName, err)
	}
	if resp.Data.StagedRepositoryID == "" {
		return "", xerrors.Errorf("server returned no staging repository id for profile %s: %w", profileName,
			ErrUnexpectedResponse)
	}

	c.logger.Info("Created staging repository", slog.String("repo_id", resp.Data.StagedRepositoryID))
	return resp.Data.StagedRepositoryID, nil
}

// CloseStagingRepos closes staging repositories in a single bulk call. No files can be added afterwards.
func (c *Client) CloseStagingRepos(ctx context.Context, description string, repoIDs ...string) error {
	return c.bulk(ctx, "close", bulkData{StagedRepositoryIDs: repoIDs, Description: description})
}

// DropStagingRepos deletes staging repositories and all their artifacts in a single bulk call.
func (c *Client) DropStagingRepos(ctx context.Context, description string, repoIDs ...string) error {
	return c.bulk(ctx, "drop", bulkData{StagedRepositoryIDs: repoIDs, Description: description})
}

// PromoteStagingRepos releases closed staging repositories into their target repositories.
func (c *Client) PromoteStagingRepos(ctx context.Context, description string, autoDrop bool, repoIDs ...string) error {
	return c.bulk(ctx, "promote", bulkData{
		StagedRepositoryIDs:  repoIDs,
		Description:          description,
		AutoDropAfterRelease: lo.ToPtr(autoDrop),
	})
}

func (c *Client) bulk(ctx context.Context, op string, data bulkData) error {
	if len(data.StagedRepositoryIDs) == 0 {
		return xerrors.Errorf("bulk %s needs at least one staging repository id: %w", op, types.ErrInvalidArgument)
	}

	c.logger.Info("Bulk staging operation", slog.String("op", op), slog.Any("repo_ids", data.StagedRepositoryIDs))
	if err := c.sendJSON(ctx, http.MethodPost, c.endpoint("service/local/staging/bulk", op), bulkRequest{Data: data}, nil); err != nil {
		return xerrors.Errorf("unable to %s %v: %w", op, data.StagedRepositoryIDs, err)
	}
	return nil
}

// ListStagingRepos returns staging repositories matching filter (see FilterMatches).
func (c *Client) ListStagingRepos(ctx context.Context, filter map[string]any) ([]types.StagingRepo, error) {
	var resp struct {
		Data []types.StagingRepo `json:"data"`
	}
	if err := c.sendJSON(ctx, http.MethodGet, c.endpoint("service/local/staging/profile_repositories"), nil, &resp); err != nil {
		return nil, xerrors.Errorf("unable to list staging repositories: %w", err)
	}

	repos := FilterStagingRepos(resp.Data, filter)
	c.logger.Debug("Staging repositories", slog.Int("total", len(resp.Data)), slog.Int("matched", len(repos)))
	return repos, nil
}

// StagingRepoTarget returns the id of the permanent repository the staging repository releases into.
func (c *Client) StagingRepoTarget(ctx context.Context, repoID string) (string, error) {
	var resp struct {
		ReleaseRepositoryID string `json:"releaseRepositoryId"`
	}
	if err := c.sendJSON(ctx, http.MethodGet, c.endpoint("service/local/staging/repository", repoID), nil, &resp); err != nil {
		return "", xerrors.Errorf("unable to get staging repository %s: %w", repoID, err)
	}
	if resp.ReleaseRepositoryID == "" {
		return "", xerrors.Errorf("staging repository %s has no release repository: %w", repoID, ErrUnexpectedResponse)
	}
	return resp.ReleaseRepositoryID, nil
}

// FilelistName returns the name of the filelist manifest of a staging repository.
func FilelistName(repoID string) string {
	return repoID + "-filelist"
}

// PutFilelist uploads the filelist manifest into an open staging repository.
func (c *Client) PutFilelist(ctx context.Context, repoID string, data []byte) error {
	header := http.Header{}
	header.Set("Content-Type", "text/csv")
	resp, err := c.send(ctx, http.MethodPost, c.endpoint(deployPrefix, repoID, FilelistName(repoID)), bytes.NewReader(data), header)
	if err != nil {
		return xerrors.Errorf("unable to upload filelist of %s: %w", repoID, err)
	}
	_ = resp.Body.Close()
	return nil
}

// GetFilelist downloads the filelist manifest of a staging repository.
func (c *Client) GetFilelist(ctx context.Context, repoID string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, c.endpoint(contentPrefix, repoID, FilelistName(repoID)), nil, nil)
	if IsNotFound(err) {
		return nil, xerrors.Errorf("%s: %w", err, types.ErrMissingFilelist)
	} else if err != nil {
		return nil, xerrors.Errorf("unable to download filelist of %s: %w", repoID, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Errorf("can't read filelist of %s: %w", repoID, err)
	}
	return b, nil
}
