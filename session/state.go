package session

// State is the lifecycle of the logical session, not of any one request.
// Refreshing is a single shared state: any number of concurrent requests
// may observe it while exactly one upstream refresh is in flight.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
	StateRefreshing      State = "refreshing"
)
