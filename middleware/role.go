package middleware

import (
	"net/http"
	"slices"

	goSession "github.com/MrEthical07/goSession"
)

// RequireRole behaves like Guard and additionally answers 403 unless the
// resolved identity carries one of roles. The session role and the user's
// role list are both consulted.
func RequireRole(resolver Resolver, roles ...string) func(http.Handler) http.Handler {
	return guard(resolver, true, func(res *goSession.Resolution) bool {
		if res.Metadata.Role != "" && slices.Contains(roles, res.Metadata.Role) {
			return true
		}
		if res.User == nil {
			return false
		}
		for _, r := range res.User.Roles {
			if slices.Contains(roles, r) {
				return true
			}
		}
		return false
	})
}
