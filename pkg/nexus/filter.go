package nexus

import (
	"reflect"

	"github.com/samber/lo"

	"github.com/repositorytools/repositorytools/pkg/types"
)

// FilterMatches reports whether candidate has every key of filter with an equal value.
// Extra keys in candidate don't matter, so the relation isn't symmetric.
func FilterMatches(candidate, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := candidate[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// FilterStagingRepos returns the repositories matching filter. An empty filter matches everything.
func FilterStagingRepos(repos []types.StagingRepo, filter map[string]any) []types.StagingRepo {
	if len(filter) == 0 {
		return repos
	}
	return lo.Filter(repos, func(r types.StagingRepo, _ int) bool {
		return FilterMatches(r, filter)
	})
}
