package handler

const (
	// RootPath is the root path the route group.
	RootPath = "/"

	// APIPath is the base path for the JSON API.
	APIPath = RootPath + "api"

	// AuthStatusPath is the auth status endpoint. Named here because the
	// auth middleware exempts it: the endpoint inspects expired and
	// revoked tokens itself.
	AuthStatusPath = APIPath + "/auth/status"

	// ErrNilACDFatalLogMsg is used if app or cfg or db var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or db is nil"
)
