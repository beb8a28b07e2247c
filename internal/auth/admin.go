package auth

import "crypto/subtle"

// AdminGuard is the capability check for admin routes: a shared secret
// presented in the x-admin-secret header, compared in constant time.
type AdminGuard struct {
	secret []byte
}

func NewAdminGuard(secret string) *AdminGuard {
	return &AdminGuard{secret: []byte(secret)}
}

// Allow reports whether the presented secret grants admin capability.
// An empty configured secret locks every admin route.
func (g *AdminGuard) Allow(presented string) bool {
	if len(g.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(g.secret, []byte(presented)) == 1
}
