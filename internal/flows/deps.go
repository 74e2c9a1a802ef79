package flows

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow.
type Deps struct {
	Resolve ResolveDeps
	Logout  LogoutDeps
}
