package platform_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routeintel/fleetpanel/internal/adapter/driven/platform"
	"github.com/routeintel/fleetpanel/internal/domain/model"
	"github.com/routeintel/fleetpanel/internal/domain/port/driven"
)

const testAddInID = "aToX17wcVjkeXRQnc_fj0kA"

// rpcCall is one decoded request the fake platform received.
type rpcCall struct {
	Method string
	Params map[string]any
}

// rpcFault makes the fake platform answer a call with a host exception.
type rpcFault struct {
	Code    int
	Name    string
	Message string
}

// fakePlatform is an httptest-backed stand-in for the platform's RPC
// endpoint. Handlers are registered per method; every received call is
// recorded for assertions.
type fakePlatform struct {
	mu       sync.Mutex
	calls    []rpcCall
	handlers map[string]func(params map[string]any) (any, *rpcFault)
}

func newFakePlatform() *fakePlatform {
	f := &fakePlatform{handlers: make(map[string]func(map[string]any) (any, *rpcFault))}
	f.handle("Authenticate", func(map[string]any) (any, *rpcFault) {
		return map[string]any{
			"credentials": map[string]any{
				"userName":  "ops@routeintel.example",
				"database":  "acme",
				"sessionId": "session-1",
			},
			"path": "ThisServer",
		}, nil
	})
	return f
}

func (f *fakePlatform) handle(method string, fn func(params map[string]any) (any, *rpcFault)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method] = fn
}

func (f *fakePlatform) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *fakePlatform) lastCall(t *testing.T, method string) rpcCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method {
			return f.calls[i]
		}
	}
	t.Fatalf("no %s call recorded", method)
	return rpcCall{}
}

func (f *fakePlatform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string         `json:"id"`
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls = append(f.calls, rpcCall{Method: req.Method, Params: req.Params})
	handler := f.handlers[req.Method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if handler == nil {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "unknown method " + req.Method,
				"code":    -32601,
			},
		})
		return
	}

	result, fault := handler(req.Params)
	if fault != nil {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": fault.Message,
				"code":    fault.Code,
				"errors":  []map[string]any{{"name": fault.Name, "message": fault.Message}},
			},
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"result": result})
}

// newTestClient creates a Client wired to the given fake platform.
func newTestClient(t *testing.T, fake *fakePlatform) *platform.Client {
	t.Helper()

	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	creds := model.PlatformCredentials{
		Server:   server.URL,
		Database: "acme",
		Username: "ops@routeintel.example",
		Password: "hunter2",
	}
	return platform.NewClientWithHTTPClient(server.Client(), server.URL, creds, testAddInID)
}

func TestFetchDevices(t *testing.T) {
	fake := newFakePlatform()
	fake.handle("Get", func(map[string]any) (any, *rpcFault) {
		return []map[string]any{
			{"id": "b1", "name": "Truck 101", "serialNumber": "G9XXX0001"},
			{"id": "b2", "name": "Truck 102", "serialNumber": "G9XXX0002", "activeTo": "2020-06-01T00:00:00.000Z"},
			{"id": "b3", "name": "Truck 103", "serialNumber": "G9XXX0003", "activeTo": "2050-01-01T00:00:00.000Z"},
		}, nil
	})

	client := newTestClient(t, fake)
	devices, err := client.FetchDevices(context.Background())

	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, "b1", devices[0].ID)
	assert.Equal(t, "Truck 101", devices[0].Name)
	assert.Equal(t, "G9XXX0001", devices[0].SerialNumber)
	assert.Nil(t, devices[0].ActiveTo)

	now := time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)
	assert.False(t, devices[0].Retired(now), "device without activeTo is active")
	assert.True(t, devices[1].Retired(now), "past activeTo means retired")
	assert.False(t, devices[2].Retired(now), "future activeTo means still active")
}

func TestFetchDevices_AuthenticatesOnce(t *testing.T) {
	fake := newFakePlatform()
	fake.handle("Get", func(map[string]any) (any, *rpcFault) {
		return []map[string]any{}, nil
	})

	client := newTestClient(t, fake)
	_, err := client.FetchDevices(context.Background())
	require.NoError(t, err)
	_, err = client.FetchDevices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, fake.callCount("Authenticate"), "session should be cached across calls")
	assert.Equal(t, 2, fake.callCount("Get"))

	// Authenticated calls carry the cached session credentials.
	call := fake.lastCall(t, "Get")
	creds, ok := call.Params["credentials"].(map[string]any)
	require.True(t, ok, "Get params should include credentials")
	assert.Equal(t, "session-1", creds["sessionId"])
}

func TestCall_RenewsExpiredSession(t *testing.T) {
	fake := newFakePlatform()
	failures := 1
	fake.handle("Get", func(map[string]any) (any, *rpcFault) {
		if failures > 0 {
			failures--
			return nil, &rpcFault{Code: -32000, Name: "SessionExpiredException", Message: "session expired"}
		}
		return []map[string]any{{"id": "b1", "name": "Truck 101", "serialNumber": "SN1"}}, nil
	})

	client := newTestClient(t, fake)
	devices, err := client.FetchDevices(context.Background())

	require.NoError(t, err, "expired session should be renewed transparently")
	require.Len(t, devices, 1)
	assert.Equal(t, 2, fake.callCount("Authenticate"), "renewal should re-authenticate")
	assert.Equal(t, 2, fake.callCount("Get"), "failed call should be retried once")
}

func TestCall_RenewalFailureSurfaces(t *testing.T) {
	fake := newFakePlatform()
	fake.handle("Get", func(map[string]any) (any, *rpcFault) {
		return nil, &rpcFault{Code: -32000, Name: "SessionExpiredException", Message: "session expired"}
	})

	client := newTestClient(t, fake)
	_, err := client.FetchDevices(context.Background())

	require.Error(t, err)
	var gerr *driven.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "SessionExpiredException", gerr.Name)
	assert.Equal(t, 2, fake.callCount("Get"), "only one retry after renewal")
}

func TestAuthenticate_BadCredentials(t *testing.T) {
	fake := newFakePlatform()
	fake.handle("Authenticate", func(map[string]any) (any, *rpcFault) {
		return nil, &rpcFault{Code: -32000, Name: "InvalidUserException", Message: "incorrect user or password"}
	})

	client := newTestClient(t, fake)
	err := client.Authenticate(context.Background())

	require.Error(t, err)
	var gerr *driven.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Authenticate", gerr.Method)
	assert.Equal(t, "InvalidUserException", gerr.Name)
	assert.Equal(t, "incorrect user or password", gerr.Message)
}

func TestAuthenticate_IncompleteCredentials(t *testing.T) {
	client := platform.NewClient(model.PlatformCredentials{Server: "https://fleet.example"}, testAddInID)

	err := client.Authenticate(context.Background())

	require.Error(t, err)
	var gerr *driven.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Message, "not configured")
}

func TestFetchDevice(t *testing.T) {
	fake := newFakePlatform()
	fake.handle("Get", func(params map[string]any) (any, *rpcFault) {
		search, _ := params["search"].(map[string]any)
		if search["id"] == "b7" {
			return []map[string]any{{"id": "b7", "name": "Van 7", "serialNumber": "SN7"}}, nil
		}
		return []map[string]any{}, nil
	})

	client := newTestClient(t, fake)

	device, err := client.FetchDevice(context.Background(), "b7")
	require.NoError(t, err)
	require.NotNil(t, device)
	assert.Equal(t, "Van 7", device.Name)

	device, err = client.FetchDevice(context.Background(), "b404")
	require.NoError(t, err)
	assert.Nil(t, device, "unknown device should be nil, not an error")
}

func TestFetchMappings(t *testing.T) {
	fake := newFakePlatform()
	fake.handle("Get", func(params map[string]any) (any, *rpcFault) {
		return []map[string]any{
			{
				"id":      "a1",
				"addInId": testAddInID,
				"version": "0000000000000003",
				"details": map[string]any{
					"type":      "ri-device",
					"gt-device": "b1",
					"name":      "Truck 101",
					"gt-sn":     "G9XXX0001",
					"ri-token":  "tok-abc",
					"ri-device": "ext-dev-1",
					"ri-driver": "ext-drv-1",
					"date":      "2026-08-20T09:30:00.000Z",
				},
			},
			{
				// Placeholder record: sentinels come back as empty fields.
				"id":      "a2",
				"addInId": testAddInID,
				"version": "0000000000000001",
				"details": map[string]any{
					"type":      "ri-device",
					"gt-device": "b2",
					"name":      "Truck 102",
					"gt-sn":     "G9XXX0002",
					"ri-token":  "TOKEN",
					"ri-device": "DeviceID",
					"ri-driver": "DriverID",
					"date":      "2026-08-19T08:00:00.000Z",
				},
			},
			{
				// Foreign record under the same add-in id: skipped.
				"id":      "a3",
				"addInId": testAddInID,
				"version": "0000000000000009",
				"details": map[string]any{"type": "ri-settings", "theme": "dark"},
			},
		}, nil
	})

	client := newTestClient(t, fake)
	mappings, err := client.FetchMappings(context.Background())

	require.NoError(t, err)
	require.Len(t, mappings, 2, "foreign record should be skipped")

	search, ok := fake.lastCall(t, "Get").Params["search"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, testAddInID, search["addInId"], "mappings are scoped to our add-in id")

	assert.Equal(t, "a1", mappings[0].ID)
	assert.Equal(t, "0000000000000003", mappings[0].Version)
	assert.Equal(t, "b1", mappings[0].DeviceID)
	assert.Equal(t, "Truck 101", mappings[0].DeviceName)
	assert.Equal(t, "G9XXX0001", mappings[0].SerialNumber)
	assert.Equal(t, "tok-abc", mappings[0].Credentials.Token)
	assert.Equal(t, "ext-dev-1", mappings[0].Credentials.ExternalDeviceID)
	assert.Equal(t, "ext-drv-1", mappings[0].Credentials.ExternalDriverID)
	assert.Equal(t, time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC), mappings[0].LastModified.UTC())
	assert.False(t, mappings[0].Placeholder())

	assert.Equal(t, "b2", mappings[1].DeviceID)
	assert.Empty(t, mappings[1].Credentials.Token, "sentinel token should read back empty")
	assert.Empty(t, mappings[1].Credentials.ExternalDeviceID)
	assert.Empty(t, mappings[1].Credentials.ExternalDriverID)
	assert.True(t, mappings[1].Placeholder())
}

func TestCreateMapping(t *testing.T) {
	fake := newFakePlatform()
	fake.handle("Add", func(map[string]any) (any, *rpcFault) {
		return "a42", nil
	})

	client := newTestClient(t, fake)
	created, err := client.CreateMapping(context.Background(), model.Mapping{
		DeviceID:     "b1",
		DeviceName:   "Truck 101",
		SerialNumber: "G9XXX0001",
		LastModified: time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)
	assert.Equal(t, "a42", created.ID, "platform-assigned id should be adopted")

	call := fake.lastCall(t, "Add")
	entity, ok := call.Params["entity"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, testAddInID, entity["addInId"])

	details, ok := entity["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ri-device", details["type"])
	assert.Equal(t, "b1", details["gt-device"])
	assert.Equal(t, "TOKEN", details["ri-token"], "empty token should be written as sentinel")
	assert.Equal(t, "DeviceID", details["ri-device"])
	assert.Equal(t, "DriverID", details["ri-driver"])
	assert.Equal(t, "2026-08-21T10:00:00.000Z", details["date"])
}

func TestUpdateMapping(t *testing.T) {
	fake := newFakePlatform()
	fake.handle("Set", func(map[string]any) (any, *rpcFault) {
		return nil, nil
	})

	client := newTestClient(t, fake)
	err := client.UpdateMapping(context.Background(), model.Mapping{
		ID:           "a1",
		Version:      "0000000000000003",
		DeviceID:     "b1",
		DeviceName:   "Truck 101 (renamed)",
		SerialNumber: "G9XXX0001",
		Credentials: model.Credentials{
			Token:            "tok-abc",
			ExternalDeviceID: "ext-dev-1",
			ExternalDriverID: "ext-drv-1",
		},
		LastModified: time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC),
	})

	require.NoError(t, err)

	call := fake.lastCall(t, "Set")
	entity, ok := call.Params["entity"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a1", entity["id"])
	assert.Equal(t, "0000000000000003", entity["version"], "update must carry the version token")

	details, ok := entity["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Truck 101 (renamed)", details["name"])
	assert.Equal(t, "tok-abc", details["ri-token"], "set credentials pass through unchanged")
}

func TestCall_GatewayErrorCarriesMethod(t *testing.T) {
	fake := newFakePlatform()
	fake.handle("Get", func(map[string]any) (any, *rpcFault) {
		return nil, &rpcFault{Code: -32000, Name: "DbUnavailableException", Message: "database maintenance"}
	})

	client := newTestClient(t, fake)
	_, err := client.FetchMappings(context.Background())

	require.Error(t, err)
	var gerr *driven.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "Get", gerr.Method)
	assert.Equal(t, "DbUnavailableException", gerr.Name)
	assert.Equal(t, 1, fake.callCount("Authenticate"), "non-session errors must not trigger renewal")
}
