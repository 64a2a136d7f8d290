package nexus_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repositorytools/repositorytools/pkg/config"
	"github.com/repositorytools/repositorytools/pkg/nexus"
	"github.com/repositorytools/repositorytools/pkg/nexustest"
	"github.com/repositorytools/repositorytools/pkg/types"
)

func TestClient_CreateStagingRepo(t *testing.T) {
	tests := []struct {
		name      string
		profile   string
		want      string
		assertErr assert.ErrorAssertionFunc
	}{
		{
			name:      "happy path",
			profile:   "com.example",
			want:      "com.example-1000",
			assertErr: assert.NoError,
		},
		{
			name:    "unknown profile",
			profile: "com.example.other",
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, types.ErrProfileNotFound)
			},
		},
		{
			name:    "profile names match exactly",
			profile: "com.exam",
			assertErr: func(t assert.TestingT, err error, _ ...any) bool {
				return assert.ErrorIs(t, err, types.ErrProfileNotFound)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newServer(t)
			c := newClient(ts, "admin", "secret")

			got, err := c.CreateStagingRepo(context.Background(), tt.profile, "nightly")
			if !tt.assertErr(t, err) {
				return
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, nexustest.StateOpen, ts.State(got))
		})
	}
}

func TestClient_StagingLifecycle(t *testing.T) {
	ts := newServer(t)
	c := newClient(ts, "admin", "secret")
	ctx := context.Background()

	repoID, err := c.CreateStagingRepo(ctx, "com.example", "nightly")
	require.NoError(t, err)

	artifacts := []types.LocalArtifact{
		localArtifact(t, "com.example:devbox:2.0.0", "devbox-2.0.0.tgz", "devbox"),
		localArtifact(t, "com.example:devbox:2.0.0", "devbox-2.0.0-sources.jar", "sources"),
	}
	got, err := c.UploadArtifactsToStaging(ctx, artifacts, repoID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// classifier and extension come from the server
	assert.Equal(t, types.Coordinate{Group: "com.example", Artifact: "devbox", Version: "2.0.0", Extension: "tgz"},
		got[0].Coordinate)
	assert.Equal(t, types.Coordinate{Group: "com.example", Artifact: "devbox", Version: "2.0.0",
		Classifier: "sources", Extension: "jar"}, got[1].Coordinate)
	assert.Equal(t, ts.URL+"/content/repositories/"+repoID+"/com/example/devbox/2.0.0/devbox-2.0.0.tgz", got[0].URL)

	require.NoError(t, c.PutFilelist(ctx, repoID, []byte(got[0].String()+"\n")))
	filelist, err := c.GetFilelist(ctx, repoID)
	require.NoError(t, err)
	assert.Equal(t, got[0].String()+"\n", string(filelist))

	// promoting an open repository is rejected by the server
	err = c.PromoteStagingRepos(ctx, "release", true, repoID)
	assert.Equal(t, http.StatusBadRequest, nexus.StatusCode(err), err)

	require.NoError(t, c.CloseStagingRepos(ctx, "closing", repoID))
	assert.Equal(t, nexustest.StateClosed, ts.State(repoID))

	target, err := c.StagingRepoTarget(ctx, repoID)
	require.NoError(t, err)
	assert.Equal(t, "releases", target)

	require.NoError(t, c.PromoteStagingRepos(ctx, "release", false, repoID))
	assert.Equal(t, nexustest.StateReleased, ts.State(repoID))

	released, ok := ts.File("releases", "com/example/devbox/2.0.0/devbox-2.0.0.tgz")
	require.True(t, ok)
	assert.Equal(t, "devbox", string(released))

	require.NoError(t, c.DropStagingRepos(ctx, "cleanup", repoID))
	repos, err := c.ListStagingRepos(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestClient_GetFilelist_missing(t *testing.T) {
	ts := newServer(t)
	c := newClient(ts, "admin", "secret")
	ctx := context.Background()

	repoID, err := c.CreateStagingRepo(ctx, "com.example", "nightly")
	require.NoError(t, err)

	_, err = c.GetFilelist(ctx, repoID)
	assert.ErrorIs(t, err, types.ErrMissingFilelist)
}

func TestClient_BulkWithoutIDs(t *testing.T) {
	ts := newServer(t)
	c := newClient(ts, "admin", "secret")

	err := c.CloseStagingRepos(context.Background(), "closing")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.Empty(t, ts.Requests())
}

func TestClient_ListStagingRepos(t *testing.T) {
	ts := newServer(t)
	ts.AddProfile("56c78d", "org.example", "releases")
	c := newClient(ts, "admin", "secret")
	ctx := context.Background()

	first, err := c.CreateStagingRepo(ctx, "com.example", "first")
	require.NoError(t, err)
	second, err := c.CreateStagingRepo(ctx, "org.example", "second")
	require.NoError(t, err)
	require.NoError(t, c.CloseStagingRepos(ctx, "", second))

	tests := []struct {
		name   string
		filter map[string]any
		want   []string
	}{
		{
			name: "no filter",
			want: []string{first, second},
		},
		{
			name:   "by type",
			filter: map[string]any{"type": "closed"},
			want:   []string{second},
		},
		{
			name:   "by profile and description",
			filter: map[string]any{"profileName": "com.example", "description": "first"},
			want:   []string{first},
		},
		{
			name:   "unknown key",
			filter: map[string]any{"owner": "nobody"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repos, err := c.ListStagingRepos(ctx, tt.filter)
			require.NoError(t, err)

			var ids []string
			for _, r := range repos {
				ids = append(ids, r.ID())
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestClient_BulkStagingRepos(t *testing.T) {
	ts := newServer(t)
	c := newClient(ts, "admin", "secret")
	ctx := context.Background()

	first, err := c.CreateStagingRepo(ctx, "com.example", "first")
	require.NoError(t, err)
	second, err := c.CreateStagingRepo(ctx, "com.example", "second")
	require.NoError(t, err)

	require.NoError(t, c.CloseStagingRepos(ctx, "", first, second))
	assert.Equal(t, nexustest.StateClosed, ts.State(first))
	assert.Equal(t, nexustest.StateClosed, ts.State(second))

	require.NoError(t, c.DropStagingRepos(ctx, "", first, second))
	assert.Equal(t, nexustest.StateDropped, ts.State(first))
	assert.Equal(t, nexustest.StateDropped, ts.State(second))

	// an open repository can be dropped without closing it first
	third, err := c.CreateStagingRepo(ctx, "com.example", "third")
	require.NoError(t, err)
	require.NoError(t, c.DropStagingRepos(ctx, "", third))
	assert.Equal(t, nexustest.StateDropped, ts.State(third))

	repos, err := c.ListStagingRepos(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestClient_IncompleteResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/service/local/index/custom_metadata/") {
			_, _ = w.Write([]byte(`{"data":[{"key":"build","value":42}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	t.Cleanup(ts.Close)
	c := nexus.NewClient(config.Config{URL: ts.URL})
	ctx := context.Background()

	a, err := types.NewRemoteArtifact("thirdparty", "com.example:devbox:2.0.0::tgz")
	require.NoError(t, err)

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{
			name: "resolve without a path",
			call: func() error {
				return c.ResolveArtifact(ctx, &a)
			},
			wantErr: nexus.ErrUnexpectedResponse,
		},
		{
			name: "staging repository without a release repository",
			call: func() error {
				_, err := c.StagingRepoTarget(ctx, "com.example-1000")
				return err
			},
			wantErr: nexus.ErrUnexpectedResponse,
		},
		{
			name: "metadata with a number value",
			call: func() error {
				_, err := c.GetArtifactMetadata(ctx, a)
				return err
			},
			wantErr: types.ErrMalformedMetadata,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.ErrorIs(t, err, tt.wantErr)
			assert.NotErrorIs(t, err, types.ErrInvalidArgument)
		})
	}
}
