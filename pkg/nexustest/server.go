// Package nexustest provides an in-memory Nexus server for tests.
package nexustest

import (
	"crypto/sha1" //nolint:gosec
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/samber/lo"

	"github.com/repositorytools/repositorytools/pkg/types"
)

// Staging repository states.
const (
	StateOpen     = "open"
	StateClosed   = "closed"
	StateReleased = "released"
	StateDropped  = "dropped"
)

type profile struct {
	id            string
	name          string
	releaseRepoID string
}

type stagingRepo struct {
	id          string
	profile     profile
	state       string
	description string
}

type repository struct {
	files map[string][]byte
	// index maps coordinates to repository paths
	index    map[types.Coordinate]string
	metadata map[types.Coordinate]map[string]string
}

type failure struct {
	method string
	prefix string
	status int
	skip   int
}

// Server is a fake Nexus 2 Pro server covering the artifact, staging and custom metadata endpoints.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	user     string
	password string
	profiles []profile
	staging  map[string]*stagingRepo
	repos    map[string]*repository
	nextID   int
	requests []string
	failures []*failure
}

// NewServer starts a server that's closed when the test finishes.
func NewServer(t *testing.T) *Server {
	s := &Server{
		staging: map[string]*stagingRepo{},
		repos:   map[string]*repository{},
		nextID:  1000,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /service/local/artifact/maven/resolve", s.resolve)
	mux.HandleFunc("POST /service/local/artifact/maven/content", s.uploadIndexed)
	mux.HandleFunc("PUT /service/local/staging/deployByRepositoryId/{repo}/{path...}", s.deploy)
	mux.HandleFunc("POST /service/local/staging/deployByRepositoryId/{repo}/{path...}", s.deploy)
	mux.HandleFunc("GET /service/local/repositories/{repo}/content/{path...}", s.describe)
	mux.HandleFunc("GET /content/repositories/{repo}/{path...}", s.content)
	mux.HandleFunc("DELETE /content/repositories/{repo}/{path...}", s.delete)
	mux.HandleFunc("GET /service/local/index/custom_metadata/{repo}/{id...}", s.getMetadata)
	mux.HandleFunc("POST /service/local/index/custom_metadata/{repo}/{id...}", s.setMetadata)
	mux.HandleFunc("GET /service/local/staging/profiles", s.listProfiles)
	mux.HandleFunc("POST /service/local/staging/profiles/{id}/start", s.start)
	mux.HandleFunc("POST /service/local/staging/bulk/{op}", s.bulk)
	mux.HandleFunc("GET /service/local/staging/profile_repositories", s.listStaging)
	mux.HandleFunc("GET /service/local/staging/repository/{id}", s.stagingRepository)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		for _, f := range s.failures {
			if f.method == r.Method && strings.HasPrefix(r.URL.Path, f.prefix) {
				if f.skip > 0 {
					f.skip--
					continue
				}
				http.Error(w, "injected failure", f.status)
				return
			}
		}
		if r.Method != http.MethodGet && s.user != "" {
			if user, password, ok := r.BasicAuth(); !ok || user != s.user || password != s.password {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// RequireAuth makes every non-GET request require the given basic auth credentials.
func (s *Server) RequireAuth(user, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.password = user, password
}

// AddProfile registers a staging profile releasing into releaseRepoID.
func (s *Server) AddProfile(id, name, releaseRepoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = append(s.profiles, profile{id: id, name: name, releaseRepoID: releaseRepoID})
}

// FailOn answers requests with status once skip matching requests have passed.
func (s *Server) FailOn(method, pathPrefix string, status, skip int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, &failure{method: method, prefix: pathPrefix, status: status, skip: skip})
}

// Requests returns `METHOD /path` of every request received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// State returns the state of a staging repository, empty if it never existed.
func (s *Server) State(repoID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.staging[repoID]; ok {
		return r.state
	}
	return ""
}

// File returns the content stored at path in a repository.
func (s *Server) File(repoID, path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo, ok := s.repos[repoID]
	if !ok {
		return nil, false
	}
	b, ok := repo.files[path]
	return b, ok
}

// Metadata returns the custom metadata of an artifact.
func (s *Server) Metadata(repoID string, c types.Coordinate) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if repo, ok := s.repos[repoID]; ok {
		return maps.Clone(repo.metadata[c])
	}
	return nil
}

// SetMetadata stores metadata directly, bypassing the API.
func (s *Server) SetMetadata(repoID string, c types.Coordinate, m map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	repo := s.repo(repoID)
	if repo.metadata[c] == nil {
		repo.metadata[c] = map[string]string{}
	}
	for k, v := range m {
		repo.metadata[c][k] = v
	}
}

func (s *Server) repo(id string) *repository {
	repo, ok := s.repos[id]
	if !ok {
		repo = &repository{
			files:    map[string][]byte{},
			index:    map[types.Coordinate]string{},
			metadata: map[types.Coordinate]map[string]string{},
		}
		s.repos[id] = repo
	}
	return repo
}

func (s *Server) store(repoID, path string, data []byte, c *types.Coordinate) {
	repo := s.repo(repoID)
	repo.files[path] = data
	if c != nil {
		repo.index[*c] = path
	}
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := types.Coordinate{
		Group:      q.Get("g"),
		Artifact:   q.Get("a"),
		Version:    q.Get("v"),
		Classifier: q.Get("c"),
		Extension:  q.Get("e"),
	}
	repo, ok := s.repos[q.Get("r")]
	if !ok {
		http.Error(w, "repository not found", http.StatusNotFound)
		return
	}
	path, ok := repo.index[c]
	if !ok {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"data": map[string]any{"repositoryPath": "/" + path}})
}

func (s *Server) uploadIndexed(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c := types.Coordinate{
		Group:      r.FormValue("g"),
		Artifact:   r.FormValue("a"),
		Version:    r.FormValue("v"),
		Classifier: r.FormValue("c"),
		Extension:  r.FormValue("e"),
	}
	repoID := r.FormValue("r")
	if c.Group == "" || c.Artifact == "" || c.Version == "" || repoID == "" {
		http.Error(w, "g, a, v and r are required", http.StatusBadRequest)
		return
	}
	if _, ok := s.staging[repoID]; ok {
		http.Error(w, "indexed upload into a staging repository", http.StatusBadRequest)
		return
	}
	path := strings.Join([]string{c.GroupPath(), c.Artifact, c.Version, c.Filename()}, "/")
	s.store(repoID, path, data, &c)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) deploy(w http.ResponseWriter, r *http.Request) {
	repoID, path := r.PathValue("repo"), r.PathValue("path")
	repo, ok := s.staging[repoID]
	if !ok {
		http.Error(w, "staging repository not found", http.StatusNotFound)
		return
	} else if repo.state != StateOpen {
		http.Error(w, fmt.Sprintf("staging repository %s is %s", repoID, repo.state), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, ok := describePath(path)
	if ok {
		s.store(repoID, path, data, &c)
	} else {
		s.store(repoID, path, data, nil)
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) describe(w http.ResponseWriter, r *http.Request) {
	repoID, path := r.PathValue("repo"), r.PathValue("path")
	if r.URL.Query().Get("describe") != "maven2" {
		http.Error(w, "unsupported describe", http.StatusBadRequest)
		return
	}
	repo, ok := s.repos[repoID]
	if !ok {
		http.Error(w, "repository not found", http.StatusNotFound)
		return
	}
	if _, ok = repo.files[path]; !ok {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	c, ok := describePath(path)
	if !ok {
		http.Error(w, "not a maven2 path", http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"data": c})
}

func (s *Server) content(w http.ResponseWriter, r *http.Request) {
	repoID, path := r.PathValue("repo"), r.PathValue("path")
	repo, ok := s.repos[repoID]
	if !ok {
		http.Error(w, "repository not found", http.StatusNotFound)
		return
	}
	if data, ok := repo.files[path]; ok {
		_, _ = w.Write(data)
		return
	}
	if data, ok := repo.files[strings.TrimSuffix(path, ".sha1")]; ok && strings.HasSuffix(path, ".sha1") {
		sum := sha1.Sum(data) //nolint:gosec
		_, _ = io.WriteString(w, hex.EncodeToString(sum[:]))
		return
	}
	http.Error(w, "file not found", http.StatusNotFound)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	repoID, path := r.PathValue("repo"), r.PathValue("path")
	repo, ok := s.repos[repoID]
	if !ok {
		http.Error(w, "repository not found", http.StatusNotFound)
		return
	}
	if _, ok = repo.files[path]; !ok {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	delete(repo.files, path)
	for c, p := range repo.index {
		if p == path {
			delete(repo.index, c)
			delete(repo.metadata, c)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) artifactFromID(w http.ResponseWriter, r *http.Request) (*repository, types.Coordinate, bool) {
	repo, ok := s.repos[r.PathValue("repo")]
	if !ok {
		http.Error(w, "repository not found", http.StatusNotFound)
		return nil, types.Coordinate{}, false
	}
	decoded, err := base64.StdEncoding.DecodeString(r.PathValue("id"))
	if err != nil || !strings.HasPrefix(string(decoded), "urn:maven/artifact#") {
		http.Error(w, "invalid artifact id", http.StatusBadRequest)
		return nil, types.Coordinate{}, false
	}
	c, err := types.ParseCoordinate(strings.TrimPrefix(string(decoded), "urn:maven/artifact#"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, types.Coordinate{}, false
	}
	if _, ok = repo.index[c]; !ok {
		http.Error(w, "artifact not found", http.StatusNotFound)
		return nil, types.Coordinate{}, false
	}
	return repo, c, true
}

func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	repo, c, ok := s.artifactFromID(w, r)
	if !ok {
		return
	}
	m := repo.metadata[c]
	keys := lo.Keys(m)
	slices.Sort(keys)
	data := lo.Map(keys, func(k string, _ int) map[string]string {
		return map[string]string{"key": k, "value": m[k]}
	})
	writeJSON(w, map[string]any{"data": data})
}

func (s *Server) setMetadata(w http.ResponseWriter, r *http.Request) {
	repo, c, ok := s.artifactFromID(w, r)
	if !ok {
		return
	}
	var body struct {
		Data []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if repo.metadata[c] == nil {
		repo.metadata[c] = map[string]string{}
	}
	for _, e := range body.Data {
		repo.metadata[c][e.Key] = e.Value
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listProfiles(w http.ResponseWriter, _ *http.Request) {
	data := lo.Map(s.profiles, func(p profile, _ int) map[string]any {
		return map[string]any{"id": p.id, "name": p.name, "mode": "BOTH"}
	})
	writeJSON(w, map[string]any{"data": data})
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	p, ok := lo.Find(s.profiles, func(p profile) bool {
		return p.id == r.PathValue("id")
	})
	if !ok {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	var body struct {
		Data struct {
			Description string `json:"description"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := fmt.Sprintf("%s-%d", p.name, s.nextID)
	s.nextID++
	s.staging[id] = &stagingRepo{id: id, profile: p, state: StateOpen, description: body.Data.Description}
	s.repo(id)
	writeJSON(w, map[string]any{"data": map[string]any{"stagedRepositoryId": id, "description": body.Data.Description}})
}

func (s *Server) bulk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data struct {
			StagedRepositoryIDs  []string `json:"stagedRepositoryIds"`
			Description          string   `json:"description"`
			AutoDropAfterRelease *bool    `json:"autoDropAfterRelease"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	op := r.PathValue("op")
	var from []string
	var to string
	switch op {
	case "close":
		from, to = []string{StateOpen}, StateClosed
	case "drop":
		from, to = []string{StateOpen, StateClosed, StateReleased}, StateDropped
	case "promote":
		from, to = []string{StateClosed}, StateReleased
	default:
		http.Error(w, "unknown operation", http.StatusNotFound)
		return
	}

	// validate the whole batch first, a bulk call applies to all repositories or to none
	for _, id := range body.Data.StagedRepositoryIDs {
		repo, ok := s.staging[id]
		if !ok || repo.state == StateDropped {
			http.Error(w, fmt.Sprintf("staging repository %s not found", id), http.StatusNotFound)
			return
		}
		if !slices.Contains(from, repo.state) {
			http.Error(w, fmt.Sprintf("can't %s staging repository %s in state %s", op, id, repo.state),
				http.StatusBadRequest)
			return
		}
	}

	for _, id := range body.Data.StagedRepositoryIDs {
		repo := s.staging[id]
		repo.state = to
		if body.Data.Description != "" {
			repo.description = body.Data.Description
		}
		switch to {
		case StateDropped:
			delete(s.repos, id)
		case StateReleased:
			s.promote(repo)
			if body.Data.AutoDropAfterRelease == nil || *body.Data.AutoDropAfterRelease {
				repo.state = StateDropped
				delete(s.repos, id)
			}
		}
	}
	w.WriteHeader(http.StatusCreated)
}

// promote copies content and index of a staging repository into its release repository.
// Custom metadata isn't copied, just like on a real server.
func (s *Server) promote(repo *stagingRepo) {
	src := s.repo(repo.id)
	dst := s.repo(repo.profile.releaseRepoID)
	for path, data := range src.files {
		if path == repo.id+"-filelist" {
			continue
		}
		dst.files[path] = data
	}
	for c, path := range src.index {
		dst.index[c] = path
	}
}

func (s *Server) listStaging(w http.ResponseWriter, _ *http.Request) {
	repos := lo.Filter(lo.Values(s.staging), func(r *stagingRepo, _ int) bool {
		return r.state != StateDropped
	})
	slices.SortFunc(repos, func(a, b *stagingRepo) int {
		return strings.Compare(a.id, b.id)
	})
	writeJSON(w, map[string]any{"data": lo.Map(repos, func(r *stagingRepo, _ int) map[string]any {
		return stagingJSON(r)
	})})
}

func (s *Server) stagingRepository(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.staging[r.PathValue("id")]
	if !ok || repo.state == StateDropped {
		http.Error(w, "staging repository not found", http.StatusNotFound)
		return
	}
	writeJSON(w, stagingJSON(repo))
}

func stagingJSON(r *stagingRepo) map[string]any {
	return map[string]any{
		"repositoryId":        r.id,
		"profileId":           r.profile.id,
		"profileName":         r.profile.name,
		"type":                r.state,
		"description":         r.description,
		"releaseRepositoryId": r.profile.releaseRepoID,
	}
}

// describePath infers maven coordinates from a group/artifact/version/filename path.
func describePath(path string) (types.Coordinate, bool) {
	ss := strings.Split(path, "/")
	if len(ss) < 4 {
		return types.Coordinate{}, false
	}
	c := types.Coordinate{
		Group:    strings.Join(ss[:len(ss)-3], "."),
		Artifact: ss[len(ss)-3],
		Version:  ss[len(ss)-2],
	}

	filename := ss[len(ss)-1]
	rest, ok := strings.CutPrefix(filename, c.Artifact+"-"+c.Version)
	if !ok {
		if i := strings.LastIndex(filename, "."); i >= 0 {
			c.Extension = filename[i+1:]
		}
		return c, true
	}
	if strings.HasPrefix(rest, "-") {
		classifier, ext, _ := strings.Cut(rest[1:], ".")
		c.Classifier, c.Extension = classifier, ext
		return c, true
	}
	c.Extension = strings.TrimPrefix(rest, ".")
	return c, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
