package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/unidata-tools/udunits-publish-tools/pkg/api"
	"github.com/unidata-tools/udunits-publish-tools/pkg/conventions"
	"github.com/unidata-tools/udunits-publish-tools/pkg/merge"
)

// ErrNotPublished is returned by CurrentVersion when no current artifact
// exists yet (the bootstrap case).
var ErrNotPublished = errors.New("no current artifact published")

// currentDirectory is the always-latest alias directory, overwritten after
// every successful versioned publish.
const currentDirectory = "current"

// Store writes release artifacts to the artifact server.
type Store interface {
	// CurrentVersion reads the currently published combined document and
	// returns the release version it was built from. Returns
	// ErrNotPublished when there is no current document.
	CurrentVersion(ctx context.Context) (string, error)

	// Publish writes the artifacts under the versioned directory first and
	// updates the "current" aliases only after the versioned writes
	// succeeded, so a partial failure never leaves "current" pointing at a
	// half-written version.
	Publish(ctx context.Context, version string, artifacts []api.Artifact) error
}

// documentVersion extracts and sanity-checks the version recorded in a
// published combined document.
func documentVersion(data []byte) (string, error) {
	version, err := merge.DocumentVersion(data)
	if err != nil {
		return "", err
	}

	_, err = conventions.ParseVersion(version)
	if err != nil {
		return "", fmt.Errorf("published document version: %w", err)
	}

	return version, nil
}
