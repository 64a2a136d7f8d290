package staging

import (
	"fmt"

	"github.com/repositorytools/repositorytools/pkg/types"
)

// StepError is returned when a composite upload fails part way.
// The staging repository is left in the state its last successful step produced.
type StepError struct {
	RepoID   string
	Step     string
	Uploaded []types.RemoteArtifact
	Err      error
}

func (e *StepError) Error() string {
	if e.RepoID == "" {
		return fmt.Sprintf("staging %s failed: %s", e.Step, e.Err)
	}
	return fmt.Sprintf("staging %s failed for %s (%d artifact(s) uploaded): %s", e.Step, e.RepoID, len(e.Uploaded), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ReattachError is returned when the repository was released but restoring
// custom metadata stopped at the first failure. Nothing is rolled back.
type ReattachError struct {
	RepoID       string
	TargetRepoID string
	Done         int
	Total        int
	Err          error
}

func (e *ReattachError) Error() string {
	return fmt.Sprintf("%s released into %s, metadata restored for %d/%d artifact(s): %s",
		e.RepoID, e.TargetRepoID, e.Done, e.Total, e.Err)
}

func (e *ReattachError) Unwrap() error {
	return e.Err
}
