// Package middleware provides shared middleware helpers for the
// assistant core's HTTP surface.
//
// This package lives in pkg/ (not internal/) so that alternate server
// wiring can reuse GetWorkspace()/SetWorkspace() in its own middleware.
package middleware

import "context"

type contextKey string

const workspaceKey contextKey = "workspace"

// GetWorkspace extracts the workspace id from the context.
// Returns "default" if no workspace is set.
func GetWorkspace(ctx context.Context) string {
	if v, ok := ctx.Value(workspaceKey).(string); ok && v != "" {
		return v
	}
	return "default"
}

// SetWorkspace stores the workspace id in the context.
func SetWorkspace(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceKey, workspaceID)
}
