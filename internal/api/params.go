package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/colplan/colplan/internal/auth"
)

// subjectFromRequest returns the authenticated subject, or "anonymous" when
// auth is disabled.
func subjectFromRequest(r *http.Request) string {
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		if strings.TrimSpace(identity.Subject) != "" {
			return identity.Subject
		}
	}
	return "anonymous"
}

// requireRole enforces a role when an identity is present. Requests without
// an identity pass, which covers deployments with auth disabled.
func requireRole(r *http.Request, role string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.HasRole(role) {
		return nil
	}
	return fmt.Errorf("missing required role %q", role)
}
