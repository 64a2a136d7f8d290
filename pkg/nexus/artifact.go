package nexus

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/xerrors"

	"github.com/repositorytools/repositorytools/pkg/sha1"
	"github.com/repositorytools/repositorytools/pkg/types"
)

type resolveResponse struct {
	Data struct {
		RepositoryPath string `json:"repositoryPath"`
	} `json:"data"`
}

type describeResponse struct {
	Data types.Coordinate `json:"data"`
}

// ResolveArtifact looks the artifact up in its repository and fills in its URL.
// It works without credentials.
func (c *Client) ResolveArtifact(ctx context.Context, a *types.RemoteArtifact) error {
	u := withQuery(c.endpoint("service/local/artifact/maven/resolve"), [][2]string{
		{"g", a.Group},
		{"a", a.Artifact},
		{"v", a.Version},
		{"r", a.RepoID},
		{"c", a.Classifier},
		{"e", a.Extension},
	})

	var resp resolveResponse
	if err := c.sendJSON(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return xerrors.Errorf("unable to resolve %s: %w", a, err)
	}
	if resp.Data.RepositoryPath == "" {
		return xerrors.Errorf("server returned no path for %s: %w", a, ErrUnexpectedResponse)
	}

	a.URL = c.contentURL(c.url, a.RepoID, resp.Data.RepositoryPath)
	return nil
}

// UploadArtifacts uploads artifacts one by one to a permanent repository through the indexed
// content endpoint, which registers the maven coordinates on the server.
// On failure the artifacts uploaded so far are returned along with the error.
func (c *Client) UploadArtifacts(ctx context.Context, artifacts []types.LocalArtifact, repoID string) ([]types.RemoteArtifact, error) {
	return c.uploadAll(ctx, artifacts, repoID, c.uploadIndexed)
}

// UploadArtifactsToStaging puts artifacts one by one into a staging repository.
// Classifier and extension of the results are the ones the server inferred.
func (c *Client) UploadArtifactsToStaging(ctx context.Context, artifacts []types.LocalArtifact, repoID string) ([]types.RemoteArtifact, error) {
	return c.uploadAll(ctx, artifacts, repoID, c.uploadDirect)
}

type uploadFunc func(ctx context.Context, a types.LocalArtifact, repoID string) (types.RemoteArtifact, error)

func (c *Client) uploadAll(ctx context.Context, artifacts []types.LocalArtifact, repoID string, upload uploadFunc) ([]types.RemoteArtifact, error) {
	var remotes []types.RemoteArtifact
	for i, a := range artifacts {
		c.logger.Info("Uploading", slog.String("file", filepath.Base(a.LocalPath)), slog.String("repo_id", repoID))
		remote, err := upload(ctx, a, repoID)
		if err != nil {
			return remotes, xerrors.Errorf("upload %d/%d (%s) failed: %w", i+1, len(artifacts), a.LocalPath, err)
		}
		remotes = append(remotes, remote)
	}
	return remotes, nil
}

func (c *Client) uploadIndexed(ctx context.Context, a types.LocalArtifact, repoID string) (types.RemoteArtifact, error) {
	fields := [][2]string{
		{"g", a.Group},
		{"a", a.Artifact},
		{"v", a.Version},
		{"r", repoID},
		{"e", a.Extension},
		{"p", a.Extension},
		{"hasPom", "false"},
	}
	if a.Classifier != "" {
		fields = append(fields, [2]string{"c", a.Classifier})
	}

	// Multipart bodies are streamed from the file, the boundary is fixed up front
	// so the content type is known before the body is produced.
	boundary := multipart.NewWriter(io.Discard).Boundary()
	body := retryablehttp.ReaderFunc(func() (io.Reader, error) {
		return multipartBody(boundary, fields, a.LocalPath)
	})

	header := http.Header{}
	header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
	resp, err := c.send(ctx, http.MethodPost, c.endpoint("service/local/artifact/maven/content"), body, header)
	if err != nil {
		return types.RemoteArtifact{}, err
	}
	_ = resp.Body.Close()

	remote := types.RemoteArtifact{
		Coordinate: a.Coordinate,
		RepoID:     repoID,
	}
	if err = c.ResolveArtifact(ctx, &remote); err != nil {
		return types.RemoteArtifact{}, err
	}
	return remote, nil
}

func multipartBody(boundary string, fields [][2]string, path string) (io.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open file: %w", err)
	}

	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	if err = w.SetBoundary(boundary); err != nil {
		_ = f.Close()
		return nil, xerrors.Errorf("invalid boundary: %w", err)
	}

	go func() {
		defer f.Close()
		for _, field := range fields {
			if err := w.WriteField(field[0], field[1]); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		part, err := w.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err = io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(w.Close())
	}()
	return pr, nil
}

func (c *Client) uploadDirect(ctx context.Context, a types.LocalArtifact, repoID string) (types.RemoteArtifact, error) {
	// gavf stands for group/artifact/version/filename
	gavf := gavfPath(a)

	body := retryablehttp.ReaderFunc(func() (io.Reader, error) {
		f, err := os.Open(a.LocalPath)
		if err != nil {
			return nil, xerrors.Errorf("failed to open file: %w", err)
		}
		return f, nil
	})
	header := http.Header{}
	header.Set("Content-Type", contentType(a.LocalPath))

	resp, err := c.send(ctx, http.MethodPut, c.endpoint(deployPrefix, repoID, gavf), body, header)
	if err != nil {
		return types.RemoteArtifact{}, err
	}
	_ = resp.Body.Close()

	// direct put doesn't let us set classifier and extension, ask the server what it made of the file
	var desc describeResponse
	u := c.endpoint("service/local/repositories", repoID, "content", gavf) + "?describe=maven2"
	if err = c.sendJSON(ctx, http.MethodGet, u, nil, &desc); err != nil {
		return types.RemoteArtifact{}, xerrors.Errorf("unable to describe %s: %w", gavf, err)
	}

	return types.RemoteArtifact{
		Coordinate: desc.Data,
		URL:        c.contentURL(c.stagingURL, repoID, gavf),
		RepoID:     repoID,
	}, nil
}

// DeleteArtifact deletes the artifact at url. Deleting a missing artifact returns a 404 HTTPError.
func (c *Client) DeleteArtifact(ctx context.Context, url string) error {
	resp, err := c.send(ctx, http.MethodDelete, url, nil, nil)
	if err != nil {
		return xerrors.Errorf("unable to delete %s: %w", url, err)
	}
	_ = resp.Body.Close()
	c.logger.Info("Deleted", slog.String("url", url))
	return nil
}

// FetchArtifact writes the content at url to w.
func (c *Client) FetchArtifact(ctx context.Context, url string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return 0, xerrors.Errorf("unable to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, xerrors.Errorf("can't read %s: %w", url, err)
	}
	return n, nil
}

// FetchChecksum returns the SHA-1 digest published next to the artifact at url.
func (c *Client) FetchChecksum(ctx context.Context, url string) (string, error) {
	resp, err := c.send(ctx, http.MethodGet, url+".sha1", nil, nil)
	if err != nil {
		return "", xerrors.Errorf("unable to fetch checksum of %s: %w", url, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", xerrors.Errorf("can't read checksum of %s: %w", url, err)
	}
	return sha1.Parse(b), nil
}

// contentURL builds the download URL of a repository path on host.
func (c *Client) contentURL(host, repoID, path string) string {
	return host + "/" + contentPrefix + "/" + repoID + "/" + strings.TrimPrefix(path, "/")
}

func gavfPath(a types.LocalArtifact) string {
	return strings.Join([]string{a.GroupPath(), a.Artifact, a.Version, filepath.Base(a.LocalPath)}, "/")
}

func contentType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
