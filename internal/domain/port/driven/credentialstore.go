package driven

import (
	"context"
	"errors"

	"github.com/routeintel/fleetpanel/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// FLEETPANEL_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set FLEETPANEL_SECRET_KEY")

// CredentialStore defines the driven port for encrypted persistence of the
// operator's platform API credentials. The adapter layer is responsible for
// encryption/decryption; this interface operates on plaintext values at the
// domain boundary.
type CredentialStore interface {
	// Save stores or replaces the platform credentials. Returns
	// ErrEncryptionKeyNotSet if the adapter was constructed without a key.
	Save(ctx context.Context, creds model.PlatformCredentials) error

	// Load retrieves the stored platform credentials, or nil when none have
	// been stored. Returns ErrEncryptionKeyNotSet if the adapter was
	// constructed without a key.
	Load(ctx context.Context) (*model.PlatformCredentials, error)

	// Clear removes the stored platform credentials. Clearing when nothing is
	// stored is not an error.
	Clear(ctx context.Context) error
}
