package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/artifact"
	"github.com/repositorytools/repositorytools/pkg/fileutil"
	"github.com/repositorytools/repositorytools/pkg/metadata"
	"github.com/repositorytools/repositorytools/pkg/nexus"
	"github.com/repositorytools/repositorytools/pkg/sha1"
	"github.com/repositorytools/repositorytools/pkg/types"
)

// detectGroup is the group argument that lets --rpm take the group from the package URL.
const detectGroup = "-"

type uploadOptions struct {
	staging        bool
	useExisting    bool
	uploadFilelist bool
	description    string
	rpm            bool
	coords         artifact.Options
}

func (a *app) artifactCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: "Work with artifacts",
	}
	cmd.AddCommand(a.uploadCommand())
	cmd.AddCommand(a.deleteCommand())
	cmd.AddCommand(a.getMetadataCommand())
	cmd.AddCommand(a.setMetadataCommand())
	cmd.AddCommand(a.resolveCommand())
	cmd.AddCommand(a.fetchCommand())
	return cmd
}

func (a *app) uploadCommand() *cobra.Command {
	var opts uploadOptions
	cmd := &cobra.Command{
		Use:   "upload <repo_id> <group> <local_file>...",
		Short: "Upload artifacts, detecting name and version from the file name",
		Long: `Upload artifacts into a repository.

Directories are expanded to the files they contain. Name and version are detected from
the file name unless --artifact and --version are given. With --rpm they are read from the
package headers, and a group of "-" is taken from the package URL.

With --staging, repo_id is the staging profile: a new staging repository is created,
the artifacts are uploaded into it and it's closed. Together with --use-existing,
repo_id is an open staging repository the artifacts are added to.`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.upload(cmd.Context(), args[0], args[1], args[2:], opts)
		},
	}
	flags := cmd.Flags()
	flags.BoolVarP(&opts.staging, "staging", "s", false, "upload to a new staging repository of the given profile")
	flags.BoolVarP(&opts.useExisting, "use-existing", "x", false, "with --staging, upload to an existing open staging repository")
	flags.BoolVar(&opts.uploadFilelist, "upload-filelist", false, "upload the list of uploaded artifacts, needed by release --keep-metadata")
	flags.StringVarP(&opts.description, "description", "d", "No description", "description of the staging repository")
	flags.BoolVar(&opts.rpm, "rpm", false, "read name, version and group from RPM headers")
	flags.StringVar(&opts.coords.Artifact, "artifact", "", "artifact name, detected when omitted")
	flags.StringVar(&opts.coords.Version, "version", "", "artifact version, detected when omitted")
	flags.StringVar(&opts.coords.Classifier, "classifier", "", "artifact classifier")
	flags.StringVar(&opts.coords.Extension, "extension", "", "artifact extension, detected when omitted")
	return cmd
}

func (a *app) upload(ctx context.Context, repoID, group string, paths []string, opts uploadOptions) error {
	if opts.useExisting && !opts.staging {
		return xerrors.Errorf("--use-existing needs --staging: %w", types.ErrInvalidArgument)
	}

	files, err := fileutil.Expand(paths)
	if err != nil {
		return xerrors.Errorf("unable to list files: %w", err)
	}
	if len(files) == 0 {
		return xerrors.Errorf("nothing to upload in %v: %w", paths, types.ErrInvalidArgument)
	}

	resolveOpts := opts.coords
	if group != detectGroup {
		resolveOpts.Group = group
	}
	if opts.rpm {
		resolveOpts.Detector = artifact.FromPackageMetadata{}
	}
	locals := make([]types.LocalArtifact, 0, len(files))
	for _, f := range files {
		local, err := artifact.Resolve(f, resolveOpts)
		if err != nil {
			return err
		}
		locals = append(locals, local)
	}

	var remotes []types.RemoteArtifact
	target := repoID
	switch {
	case opts.staging && opts.useExisting:
		c, closeJournal, err := a.controller()
		if err != nil {
			return err
		}
		defer closeJournal()
		if remotes, err = c.UploadToStaging(ctx, locals, repoID, opts.uploadFilelist); err != nil {
			return err
		}
	case opts.staging:
		c, closeJournal, err := a.controller()
		if err != nil {
			return err
		}
		defer closeJournal()
		if target, remotes, err = c.UploadToNewStaging(ctx, locals, repoID, opts.description, opts.uploadFilelist); err != nil {
			return err
		}
	default:
		if remotes, err = a.uploadIndexed(ctx, locals, repoID); err != nil {
			return err
		}
	}

	a.printUploaded(remotes, target)
	return nil
}

// uploadIndexed uploads one artifact at a time to show progress.
func (a *app) uploadIndexed(ctx context.Context, locals []types.LocalArtifact, repoID string) ([]types.RemoteArtifact, error) {
	client, _, err := a.client()
	if err != nil {
		return nil, err
	}

	bar := pb.New(len(locals))
	bar.SetWriter(a.errOut)
	bar.Start()
	defer bar.Finish()

	var remotes []types.RemoteArtifact
	for i, local := range locals {
		uploaded, err := client.UploadArtifacts(ctx, []types.LocalArtifact{local}, repoID)
		if err != nil {
			return remotes, xerrors.Errorf("%d of %d artifact(s) uploaded: %w", i, len(locals), err)
		}
		remotes = append(remotes, uploaded...)
		bar.Increment()
	}
	return remotes, nil
}

// printUploaded prints URLs of uploaded artifacts, as build log highlights when running under TeamCity.
func (a *app) printUploaded(remotes []types.RemoteArtifact, repoID string) {
	caption := fmt.Sprintf("The following files were uploaded to repository %s", repoID)
	if a.getenv("TEAM_CITY_URL") != "" {
		for _, r := range remotes {
			fmt.Fprintf(a.out, "##teamcity[highlight title='%s' text='<a href=\"%s\">%s</a>']\n", caption, r.URL, r.URL)
		}
		return
	}
	fmt.Fprintln(a.out, caption)
	for _, r := range remotes {
		fmt.Fprintln(a.out, r.URL)
	}
}

func (a *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <url>...",
		Short: "Delete artifacts by URL",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := a.client()
			if err != nil {
				return err
			}
			for _, u := range args {
				if err = client.DeleteArtifact(cmd.Context(), u); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) getMetadataCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-metadata <repo_id> <coordinates>",
		Short: "Print custom metadata of an artifact as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remote, err := types.NewRemoteArtifact(args[0], args[1])
			if err != nil {
				return err
			}
			client, _, err := a.client()
			if err != nil {
				return err
			}
			m, err := client.GetArtifactMetadata(cmd.Context(), remote)
			if err != nil {
				return err
			}
			return json.NewEncoder(a.out).Encode(m)
		},
	}
}

func (a *app) setMetadataCommand() *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "set-metadata <json> <repo_id> <coordinates>...",
		Short: `Set custom metadata of artifacts, e.g. '{"key1":"value1","key2":"value2"}'`,
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := metadata.Parse([]byte(args[0]))
			if err != nil {
				return err
			}
			remotes, err := remoteArtifacts(args[1], args[2:])
			if err != nil {
				return err
			}
			client, _, err := a.client()
			if err != nil {
				return err
			}
			for _, r := range remotes {
				if err = client.SetArtifactMetadata(cmd.Context(), r, m); err != nil {
					return err
				}
				if !verify {
					continue
				}
				got, err := client.GetArtifactMetadata(cmd.Context(), r)
				if err != nil {
					return xerrors.Errorf("unable to verify metadata of %s: %w", r, err)
				}
				if !metadata.Contains(got, m) {
					return xerrors.Errorf("stored metadata of %s doesn't match %s: %w", r, args[0], types.ErrMalformedMetadata)
				}
				slog.Debug("Metadata verified", slog.String("artifact", r.String()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "read the metadata back and check that every key was stored")
	return cmd
}

func (a *app) resolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <repo_id> <coordinates>...",
		Short: "Print URLs of artifacts",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			remotes, err := remoteArtifacts(args[0], args[1:])
			if err != nil {
				return err
			}
			client, _, err := a.client()
			if err != nil {
				return err
			}
			for i := range remotes {
				if err = client.ResolveArtifact(cmd.Context(), &remotes[i]); err != nil {
					return err
				}
			}
			fmt.Fprintln(a.out, strings.Join(lo.Map(remotes, func(r types.RemoteArtifact, _ int) string {
				return r.URL
			}), "\n"))
			return nil
		},
	}
}

func (a *app) fetchCommand() *cobra.Command {
	var output string
	var verify bool
	cmd := &cobra.Command{
		Use:   "fetch <repo_id> <coordinates>",
		Short: "Download an artifact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fetch(cmd.Context(), args[0], args[1], output, verify)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "destination file, defaults to the maven file name in the current directory")
	cmd.Flags().BoolVar(&verify, "verify", false, "verify the SHA-1 checksum published by the server")
	return cmd
}

func (a *app) fetch(ctx context.Context, repoID, coords, output string, verify bool) error {
	remote, err := types.NewRemoteArtifact(repoID, coords)
	if err != nil {
		return err
	}
	client, _, err := a.client()
	if err != nil {
		return err
	}
	if err = client.ResolveArtifact(ctx, &remote); err != nil {
		return err
	}

	if output == "" {
		output = filepath.Base(remote.URL)
	}
	f, err := fileutil.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := client.FetchArtifact(ctx, remote.URL, f)
	if err != nil {
		return err
	}
	slog.Info("Fetched", slog.String("url", remote.URL), slog.String("path", output), slog.Int64("bytes", n))

	if verify {
		if err = verifyChecksum(ctx, client, remote.URL, output); err != nil {
			return err
		}
	}
	fmt.Fprintln(a.out, output)
	return nil
}

func verifyChecksum(ctx context.Context, client *nexus.Client, url, path string) error {
	want, err := client.FetchChecksum(ctx, url)
	if err != nil {
		return err
	}
	if want == sha1.NotAvailable {
		return xerrors.Errorf("no checksum published for %s: %w", url, types.ErrInvalidArgument)
	}
	got, err := sha1.SumFile(path)
	if err != nil {
		return err
	}
	if got != want {
		return xerrors.Errorf("checksum mismatch for %s: got %s, want %s", path, got, want)
	}
	slog.Debug("Checksum verified", slog.String("path", path), slog.String("sha1", got))
	return nil
}

func remoteArtifacts(repoID string, coords []string) ([]types.RemoteArtifact, error) {
	remotes := make([]types.RemoteArtifact, 0, len(coords))
	for _, c := range coords {
		r, err := types.NewRemoteArtifact(repoID, c)
		if err != nil {
			return nil, err
		}
		remotes = append(remotes, r)
	}
	return remotes, nil
}
