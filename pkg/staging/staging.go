// Package staging sequences the multi-step staging workflows built from client primitives.
package staging

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/metadata"
	"github.com/repositorytools/repositorytools/pkg/nexus"
	"github.com/repositorytools/repositorytools/pkg/types"
)

// Steps of the staging workflows, also used as journal actions.
const (
	StepCreate   = "create"
	StepUpload   = "upload"
	StepFilelist = "filelist"
	StepClose    = "close"
	StepRelease  = "release"
	StepReattach = "reattach"
	StepDrop     = "drop"
)

// Recorder keeps track of actions performed on staging repositories.
type Recorder interface {
	Record(ctx context.Context, repoID, action, detail string) error
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, string, string) error { return nil }

type Controller struct {
	stager   nexus.Stager
	store    nexus.MetadataStore
	recorder Recorder
	autoDrop bool
	logger   *slog.Logger
}

type Option func(*Controller)

func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithAutoDrop sets whether released repositories are dropped by the server. Defaults to true.
func WithAutoDrop(autoDrop bool) Option {
	return func(c *Controller) {
		c.autoDrop = autoDrop
	}
}

func NewController(stager nexus.Stager, store nexus.MetadataStore, opts ...Option) *Controller {
	c := &Controller{
		stager:   stager,
		store:    store,
		recorder: nopRecorder{},
		autoDrop: true,
		logger:   slog.Default().With(slog.String("component", "staging")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create opens a new staging repository in the named profile.
func (c *Controller) Create(ctx context.Context, profile, description string) (string, error) {
	repoID, err := c.stager.CreateStagingRepo(ctx, profile, description)
	if err != nil {
		return "", err
	}
	c.record(ctx, repoID, StepCreate, "profile="+profile)
	return repoID, nil
}

// Close closes the staging repositories in one call.
func (c *Controller) Close(ctx context.Context, description string, repoIDs ...string) error {
	if err := c.stager.CloseStagingRepos(ctx, description, repoIDs...); err != nil {
		return err
	}
	for _, id := range repoIDs {
		c.record(ctx, id, StepClose, description)
	}
	return nil
}

// Drop drops the staging repositories in one call.
func (c *Controller) Drop(ctx context.Context, description string, repoIDs ...string) error {
	if err := c.stager.DropStagingRepos(ctx, description, repoIDs...); err != nil {
		return err
	}
	for _, id := range repoIDs {
		c.record(ctx, id, StepDrop, description)
	}
	return nil
}

// UploadToNewStaging creates a staging repository in profile, uploads artifacts there and closes it.
// On failure a *StepError tells which step failed; the repository isn't dropped.
func (c *Controller) UploadToNewStaging(ctx context.Context, artifacts []types.LocalArtifact, profile, description string,
	uploadFilelist bool) (string, []types.RemoteArtifact, error) {
	repoID, err := c.Create(ctx, profile, description)
	if err != nil {
		return "", nil, &StepError{Step: StepCreate, Err: err}
	}

	remotes, err := c.UploadToStaging(ctx, artifacts, repoID, uploadFilelist)
	if err != nil {
		return repoID, remotes, err
	}

	if err = c.Close(ctx, description, repoID); err != nil {
		return repoID, remotes, &StepError{RepoID: repoID, Step: StepClose, Uploaded: remotes, Err: err}
	}
	return repoID, remotes, nil
}

// UploadToStaging uploads artifacts into an already open staging repository, and the filelist
// when uploadFilelist is set. The repository stays open.
func (c *Controller) UploadToStaging(ctx context.Context, artifacts []types.LocalArtifact, repoID string,
	uploadFilelist bool) ([]types.RemoteArtifact, error) {
	remotes, err := c.stager.UploadArtifactsToStaging(ctx, artifacts, repoID)
	for _, r := range remotes {
		c.record(ctx, repoID, StepUpload, r.Coordinate.String())
	}
	if err != nil {
		return remotes, &StepError{RepoID: repoID, Step: StepUpload, Uploaded: remotes, Err: err}
	}

	if uploadFilelist {
		if err = c.stager.PutFilelist(ctx, repoID, EncodeFilelist(remotes)); err != nil {
			return remotes, &StepError{RepoID: repoID, Step: StepFilelist, Uploaded: remotes, Err: err}
		}
		c.record(ctx, repoID, StepFilelist, nexus.FilelistName(repoID))
	}
	return remotes, nil
}

// Release promotes a closed staging repository into its target repository.
// With keepMetadata, custom metadata of the artifacts listed in the filelist is read
// before the promotion and written again under the target repository afterwards.
func (c *Controller) Release(ctx context.Context, repoID, description string, keepMetadata bool) error {
	if !keepMetadata {
		return c.promote(ctx, repoID, description)
	}

	data, err := c.stager.GetFilelist(ctx, repoID)
	if err != nil {
		return err
	}
	artifacts, err := DecodeFilelist(repoID, data)
	if err != nil {
		return err
	}

	saved := make([]metadata.Metadata, len(artifacts))
	for i, a := range artifacts {
		if saved[i], err = c.store.GetArtifactMetadata(ctx, a); err != nil {
			return xerrors.Errorf("unable to save metadata before release: %w", err)
		}
	}

	target, err := c.stager.StagingRepoTarget(ctx, repoID)
	if err != nil {
		return err
	}

	if err = c.promote(ctx, repoID, description); err != nil {
		return err
	}

	for i, a := range artifacts {
		a.RepoID = target
		if err = c.store.SetArtifactMetadata(ctx, a, saved[i]); err != nil {
			c.record(ctx, repoID, StepReattach, fmt.Sprintf("%s (%d/%d artifact(s), failed at %s)", target, i,
				len(artifacts), a))
			c.logger.Error("Metadata restore stopped after release", slog.String("repo_id", repoID),
				slog.String("target", target), slog.Int("done", i), slog.Int("total", len(artifacts)),
				slog.Any("err", err))
			return &ReattachError{RepoID: repoID, TargetRepoID: target, Done: i, Total: len(artifacts), Err: err}
		}
	}
	c.record(ctx, repoID, StepReattach, fmt.Sprintf("%s (%d artifact(s))", target, len(artifacts)))
	c.logger.Info("Restored metadata after release", slog.String("repo_id", repoID),
		slog.String("target", target), slog.Int("artifacts", len(artifacts)))
	return nil
}

func (c *Controller) promote(ctx context.Context, repoID, description string) error {
	if err := c.stager.PromoteStagingRepos(ctx, description, c.autoDrop, repoID); err != nil {
		return err
	}
	c.record(ctx, repoID, StepRelease, description)
	return nil
}

// record logs and ignores recorder errors.
func (c *Controller) record(ctx context.Context, repoID, action, detail string) {
	if err := c.recorder.Record(ctx, repoID, action, detail); err != nil {
		c.logger.Warn("Unable to record staging action", slog.String("repo_id", repoID),
			slog.String("action", action), slog.Any("err", err))
	}
}
