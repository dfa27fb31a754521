package middleware

import (
	"context"
	"net/http"
	"strings"

	pkgmw "github.com/corewire/assistant-core/pkg/middleware"
)

type contextKey string

const (
	// TenantIDKey is the context key for the tenant (workspace) ID.
	TenantIDKey contextKey = "tenant_id"
)

// TenantExtractor extracts workspace information from the request.
// It checks the X-Workspace header, then the workspace query
// parameter, and falls back to "default".
func TenantExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspace := ""

		if h := r.Header.Get("X-Workspace"); h != "" {
			workspace = strings.TrimSpace(h)
		}

		if workspace == "" {
			if q := r.URL.Query().Get("workspace"); q != "" {
				workspace = strings.TrimSpace(q)
			}
		}

		if workspace == "" {
			workspace = "default"
		}

		ctx := pkgmw.SetWorkspace(r.Context(), workspace)
		ctx = context.WithValue(ctx, TenantIDKey, workspace)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetWorkspace retrieves the workspace id from the request context.
func GetWorkspace(ctx context.Context) string {
	return pkgmw.GetWorkspace(ctx)
}

// GetTenantID retrieves the tenant ID from the request context.
func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(TenantIDKey).(string); ok {
		return v
	}
	return "default"
}
