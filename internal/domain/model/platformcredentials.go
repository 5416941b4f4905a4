package model

// PlatformCredentials is the operator's sign-in for the fleet platform API.
// Values come from the environment at startup and can be replaced at runtime
// through the API, in which case they are persisted encrypted in the local
// store and take priority over the environment.
type PlatformCredentials struct {
	Server   string // base URL of the platform API, e.g. "https://fleet.example.com"
	Database string
	Username string
	Password string
}

// Complete reports whether every field required to authenticate is present.
func (c PlatformCredentials) Complete() bool {
	return c.Server != "" && c.Database != "" && c.Username != "" && c.Password != ""
}
