package ports

import (
	"context"
	"io"

	"cardd/internal/types"
)

// CardStore owns the directory-per-client bundle model. Implementations MUST
// validate the client ID on every call, MUST treat directory presence as the
// sole existence flag, and MUST serialize mutations of the same client ID so
// concurrent calls never interleave their file writes. Operations on
// different client IDs are independent and MUST NOT contend.
type CardStore interface {
	// Exists reports whether a bundle is present for clientID.
	// MUST return types.ErrInvalidIdentifier for a malformed ID.
	Exists(ctx context.Context, clientID string) (bool, error)

	// Create persists a new bundle. MUST fail with types.ErrAlreadyExists if
	// the bundle directory is already present, using an exclusive-creation
	// primitive so two concurrent creates cannot both succeed.
	Create(ctx context.Context, clientID string, spec types.CardSpec) (types.Deployment, error)

	// Update overwrites or adds the files present in spec. Files absent from
	// spec are left untouched. MUST return types.ErrNotFound if no bundle
	// exists.
	Update(ctx context.Context, clientID string, spec types.CardSpec) (types.Deployment, error)

	// Delete removes the whole bundle tree. MUST return types.ErrNotFound if
	// no bundle exists; missing files inside an existing bundle are not an
	// error.
	Delete(ctx context.Context, clientID string) error

	// Export streams the bundle to w as a gzip tarball. Implementations MUST
	// NOT hold the bundle's mutation lock while writing to w; a slow consumer
	// must not block Update or Delete on the same client ID.
	Export(ctx context.Context, clientID string, w io.Writer) error
}
