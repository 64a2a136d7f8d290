package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/fileutil"
	"github.com/repositorytools/repositorytools/pkg/journal"
	"github.com/repositorytools/repositorytools/pkg/staging"
	"github.com/repositorytools/repositorytools/pkg/types"
)

const (
	formatJSON  = "json"
	formatIDs   = "ids"
	formatTable = "table"
)

var errNotStaging = xerrors.Errorf("only staging repositories are supported, use --staging: %w", types.ErrInvalidArgument)

func (a *app) repoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Work with staging repositories",
	}
	cmd.AddCommand(a.createCommand())
	cmd.AddCommand(a.closeCommand())
	cmd.AddCommand(a.releaseCommand())
	cmd.AddCommand(a.dropCommand())
	cmd.AddCommand(a.listCommand())
	cmd.AddCommand(a.historyCommand())
	return cmd
}

func (a *app) createCommand() *cobra.Command {
	var isStaging bool
	var description string
	cmd := &cobra.Command{
		Use:   "create <profile>",
		Short: "Create a staging repository in a staging profile and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isStaging {
				return errNotStaging
			}
			c, closeJournal, err := a.controller()
			if err != nil {
				return err
			}
			defer closeJournal()

			repoID, err := c.Create(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, repoID)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&isStaging, "staging", "s", false, "create a staging repository")
	cmd.Flags().StringVarP(&description, "description", "d", "No description", "description of the staging repository")
	return cmd
}

func (a *app) closeCommand() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "close <repo_id>...",
		Short: "Close staging repositories, no changes can be made afterwards",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeJournal, err := a.controller()
			if err != nil {
				return err
			}
			defer closeJournal()
			return c.Close(cmd.Context(), description, args...)
		},
	}
	cmd.Flags().StringVar(&description, "description", "No description", "description of the close")
	return cmd
}

func (a *app) releaseCommand() *cobra.Command {
	var keepMetadata, noAutoDrop bool
	var description string
	cmd := &cobra.Command{
		Use:   "release <repo_id>...",
		Short: "Release closed staging repositories into their target repositories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []staging.Option
			if noAutoDrop {
				opts = append(opts, staging.WithAutoDrop(false))
			}
			c, closeJournal, err := a.controller(opts...)
			if err != nil {
				return err
			}
			defer closeJournal()

			for _, repoID := range args {
				if err = c.Release(cmd.Context(), repoID, description, keepMetadata); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&keepMetadata, "keep-metadata", "k", false, "keep custom metadata, needs a filelist uploaded with the artifacts")
	cmd.Flags().StringVar(&description, "description", "No description", "description of the release")
	cmd.Flags().BoolVar(&noAutoDrop, "no-auto-drop", false, "keep the staging repository after release")
	return cmd
}

func (a *app) dropCommand() *cobra.Command {
	var isStaging bool
	var description string
	cmd := &cobra.Command{
		Use:   "drop <repo_id>...",
		Short: "Drop staging repositories with all their artifacts. Use carefully!",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isStaging {
				return errNotStaging
			}
			c, closeJournal, err := a.controller()
			if err != nil {
				return err
			}
			defer closeJournal()
			return c.Drop(cmd.Context(), description, args...)
		},
	}
	cmd.Flags().BoolVarP(&isStaging, "staging", "s", false, "repositories are staging repositories")
	cmd.Flags().StringVar(&description, "description", "No description", "description of the drop")
	return cmd
}

func (a *app) listCommand() *cobra.Command {
	var isStaging bool
	var filter, format string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List staging repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isStaging {
				return errNotStaging
			}
			f, err := parseFilter(filter)
			if err != nil {
				return err
			}
			client, _, err := a.client()
			if err != nil {
				return err
			}
			repos, err := client.ListStagingRepos(cmd.Context(), f)
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				if repos == nil {
					repos = []types.StagingRepo{}
				}
				return fileutil.WriteJSON(a.out, repos)
			case formatIDs, "":
				for _, r := range repos {
					fmt.Fprintln(a.out, r.ID())
				}
				return nil
			default:
				return xerrors.Errorf("unknown output format %q: %w", format, types.ErrInvalidArgument)
			}
		},
	}
	cmd.Flags().BoolVarP(&isStaging, "staging", "s", false, "list staging repositories")
	cmd.Flags().StringVar(&filter, "filter", "", `JSON object every listed repository has to contain, e.g. '{"description":"foo"}'`)
	cmd.Flags().StringVar(&format, "output-format", formatIDs, "output format: json or ids")
	return cmd
}

func parseFilter(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var filter map[string]any
	if err := json.Unmarshal([]byte(s), &filter); err != nil {
		return nil, xerrors.Errorf("filter must be a JSON object: %w", types.ErrInvalidArgument)
	}
	return filter, nil
}

func (a *app) historyCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "history [repo_id]",
		Short: "Print staging actions recorded in the local journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := journal.New(a.journalDir)
			if err != nil {
				return xerrors.Errorf("journal error: %w", err)
			}
			defer j.Close()

			var repoID string
			if len(args) > 0 {
				repoID = args[0]
			}
			entries, err := j.List(cmd.Context(), repoID)
			if err != nil {
				return err
			}

			switch format {
			case formatJSON:
				if entries == nil {
					entries = []journal.Entry{}
				}
				return fileutil.WriteJSON(a.out, entries)
			case formatTable, "":
				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format(time.RFC3339), e.RepoID, e.Action, e.Detail)
				}
				return w.Flush()
			default:
				return xerrors.Errorf("unknown output format %q: %w", format, types.ErrInvalidArgument)
			}
		},
	}
	cmd.Flags().StringVar(&format, "output-format", formatTable, "output format: json or table")
	return cmd
}
