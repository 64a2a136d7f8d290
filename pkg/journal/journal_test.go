package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/repositorytools/repositorytools/pkg/journal"
	"github.com/repositorytools/repositorytools/pkg/journaltest"
)

func TestJournal_List(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clocktesting.NewFakeClock(now)
	j := journaltest.InitJournal(t, clk)
	ctx := context.Background()

	require.NoError(t, j.Record(ctx, "com.example-1000", "create", "nightly"))
	clk.Step(time.Minute)
	require.NoError(t, j.Record(ctx, "com.example-1001", "create", ""))
	clk.Step(time.Minute)
	require.NoError(t, j.Record(ctx, "com.example-1000", "close", ""))

	tests := []struct {
		name   string
		repoID string
		want   []journal.Entry
	}{
		{
			name:   "one repository",
			repoID: "com.example-1000",
			want: []journal.Entry{
				{ID: 1, RepoID: "com.example-1000", Action: "create", Detail: "nightly", CreatedAt: now},
				{ID: 3, RepoID: "com.example-1000", Action: "close", CreatedAt: now.Add(2 * time.Minute)},
			},
		},
		{
			name: "all repositories",
			want: []journal.Entry{
				{ID: 1, RepoID: "com.example-1000", Action: "create", Detail: "nightly", CreatedAt: now},
				{ID: 2, RepoID: "com.example-1001", Action: "create", CreatedAt: now.Add(time.Minute)},
				{ID: 3, RepoID: "com.example-1000", Action: "close", CreatedAt: now.Add(2 * time.Minute)},
			},
		},
		{
			name:   "unknown repository",
			repoID: "com.example-2000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := j.List(ctx, tt.repoID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j, err := journal.New(dir)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, "com.example-1000", "create", ""))
	require.NoError(t, j.Close())

	j, err = journal.New(dir)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "com.example-1000", got[0].RepoID)
	assert.Equal(t, dir, j.Dir())
}
