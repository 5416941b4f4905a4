package driven

import (
	"context"
	"fmt"

	"github.com/routeintel/fleetpanel/internal/domain/model"
)

// PlatformClient defines the driven port for the fleet platform's entity API.
// Fetch methods read; Create/Update write add-in records. Implementations
// return *GatewayError for any remote failure so callers can distinguish
// platform trouble from local validation.
type PlatformClient interface {
	// Authenticate eagerly verifies the sign-in credentials. Other methods
	// authenticate lazily and cache the session; this exists so callers can
	// check new credentials before adopting them.
	Authenticate(ctx context.Context) error

	// FetchDevices returns every device in the fleet, including retired ones.
	// Callers filter by active period.
	FetchDevices(ctx context.Context) ([]model.Device, error)

	// FetchDevice returns a single device by id, or nil when the platform no
	// longer returns it.
	FetchDevice(ctx context.Context, id string) (*model.Device, error)

	// FetchMappings returns every credential-mapping record stored for this
	// add-in, including placeholder and orphaned ones. Records of other
	// add-in data types are skipped, never surfaced.
	FetchMappings(ctx context.Context) ([]model.Mapping, error)

	// CreateMapping stores a new mapping record and returns a copy with the
	// platform-assigned id. m.ID must be empty.
	CreateMapping(ctx context.Context, m model.Mapping) (model.Mapping, error)

	// UpdateMapping rewrites an existing record in place. m.ID must be set
	// and m.Version must carry the last-known version token. The store does
	// not return the new token; callers re-fetch when they need it.
	UpdateMapping(ctx context.Context, m model.Mapping) error
}

// GatewayError is any failure of a platform RPC: transport trouble, an
// authentication problem, or a host-side rejection. The service logs and
// surfaces Message but does not interpret Code or Name beyond the session
// renewal handled inside the adapter.
type GatewayError struct {
	Method  string // RPC method that failed, e.g. "Get"
	Code    int    // numeric code reported by the platform, 0 for transport errors
	Name    string // host exception name, e.g. "InvalidUserException"
	Message string
	Err     error // underlying transport error, if any
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("platform %s: %s", e.Method, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("platform %s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("platform %s failed", e.Method)
}

func (e *GatewayError) Unwrap() error { return e.Err }
