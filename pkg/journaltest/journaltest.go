package journaltest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"k8s.io/utils/clock"

	"github.com/repositorytools/repositorytools/pkg/journal"
)

// InitJournal opens a journal in a temporary directory, closed when the test finishes.
func InitJournal(t *testing.T, clk clock.Clock) *journal.Journal {
	var opts []journal.Option
	if clk != nil {
		opts = append(opts, journal.WithClock(clk))
	}
	j, err := journal.New(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = j.Close()
	})
	return j
}
