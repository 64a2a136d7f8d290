// Package cli implements the repositorytools command-line interface.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/config"
	"github.com/repositorytools/repositorytools/pkg/journal"
	"github.com/repositorytools/repositorytools/pkg/nexus"
	"github.com/repositorytools/repositorytools/pkg/staging"
)

// app holds the global flags and the streams commands write to.
type app struct {
	out    io.Writer
	errOut io.Writer
	getenv func(string) string

	explicit   config.Config
	configPath string
	debug      bool
	journalDir string
	noJournal  bool
}

// Execute runs the CLI with the process streams and environment.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout, os.Stderr, os.Getenv).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree. Results go to out, logs and progress to errOut.
func NewRootCommand(out, errOut io.Writer, getenv func(string) string) *cobra.Command {
	a := &app{
		out: out,
		// the progress bar and the logger share errOut
		errOut: &lockedWriter{w: errOut},
		getenv: getenv,
	}

	root := &cobra.Command{
		Use:           "repositorytools",
		Short:         "Work with artifacts and staging repositories of a Nexus repository manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := charmlog.InfoLevel
			if a.debug {
				level = charmlog.DebugLevel
			}
			slog.SetDefault(slog.New(newLogger(a.errOut, level)))
		},
	}
	root.SetOut(out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.explicit.URL, "url", "", "repository base URL (env "+config.EnvURL+")")
	flags.StringVar(&a.explicit.StagingURL, "staging-url", "", "host of staged artifact URLs (env "+config.EnvStagingURL+")")
	flags.StringVar(&a.explicit.User, "user", "", "repository user (env "+config.EnvUser+")")
	flags.StringVar(&a.explicit.Password, "password", "", "repository password (env "+config.EnvPassword+")")
	flags.BoolVar(&a.explicit.Insecure, "insecure", false, "skip TLS certificate verification")
	flags.DurationVar(&a.explicit.Timeout, "timeout", 0, "timeout of a single HTTP request, 0 means no timeout")
	flags.StringVar(&a.configPath, "config", config.DefaultPath(), "config file")
	flags.BoolVarP(&a.debug, "debug", "D", false, "enable debug logging")
	flags.StringVar(&a.journalDir, "journal-dir", journal.DefaultDir(), "directory of the local staging journal")
	flags.BoolVar(&a.noJournal, "no-journal", false, "don't record staging actions in the local journal")

	root.AddCommand(a.artifactCommand())
	root.AddCommand(a.repoCommand())
	return root
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func newLogger(w io.Writer, level charmlog.Level) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

func (a *app) config() (config.Config, error) {
	cfg, err := config.Load(a.explicit, a.configPath, a.getenv)
	if err != nil {
		return config.Config{}, xerrors.Errorf("config error: %w", err)
	}
	return cfg, nil
}

func (a *app) client() (*nexus.Client, config.Config, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, config.Config{}, err
	}
	return nexus.NewClient(cfg), cfg, nil
}

// controller returns a staging controller recording into the journal. The returned func closes the journal.
func (a *app) controller(opts ...staging.Option) (*staging.Controller, func(), error) {
	client, cfg, err := a.client()
	if err != nil {
		return nil, nil, err
	}
	opts = append([]staging.Option{staging.WithAutoDrop(cfg.AutoDrop())}, opts...)

	if a.noJournal {
		return staging.NewController(client, client, opts...), func() {}, nil
	}
	j, err := journal.New(a.journalDir)
	if err != nil {
		return nil, nil, xerrors.Errorf("journal error: %w", err)
	}
	opts = append(opts, staging.WithRecorder(j))
	return staging.NewController(client, client, opts...), func() { _ = j.Close() }, nil
}
