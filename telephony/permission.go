package telephony

import (
	"context"
	"slices"
)

// Permission names a capability a caller must hold.
type Permission string

const PermissionSendSMS Permission = "SEND_SMS"

type PermissionStatus int

const (
	PermissionGranted PermissionStatus = 0
	PermissionDenied  PermissionStatus = -1
)

// PermissionChecker answers whether the calling process holds a permission.
// Implementations must not cache answers across calls.
type PermissionChecker interface {
	CheckSelfPermission(ctx context.Context, p Permission) PermissionStatus
}

// StaticPermissions grants a fixed set of permissions.
type StaticPermissions []Permission

func NewStaticPermissions(perms ...Permission) StaticPermissions {
	return StaticPermissions(perms)
}

func (s StaticPermissions) CheckSelfPermission(_ context.Context, p Permission) PermissionStatus {
	if slices.Contains(s, p) {
		return PermissionGranted
	}
	return PermissionDenied
}

type grantsKey struct{}

// WithGrantedPermissions attaches the permissions of an authenticated caller
// to ctx.
func WithGrantedPermissions(ctx context.Context, perms []Permission) context.Context {
	return context.WithValue(ctx, grantsKey{}, slices.Clone(perms))
}

// GrantedPermissions returns the caller permissions attached to ctx, if any.
func GrantedPermissions(ctx context.Context) ([]Permission, bool) {
	perms, ok := ctx.Value(grantsKey{}).([]Permission)
	return perms, ok
}

// CallerPermissions checks the grants attached to the request context.
// Requests without attached grants are answered by Fallback, or denied when
// Fallback is nil.
type CallerPermissions struct {
	Fallback PermissionChecker
}

func (c CallerPermissions) CheckSelfPermission(ctx context.Context, p Permission) PermissionStatus {
	if perms, ok := GrantedPermissions(ctx); ok {
		return StaticPermissions(perms).CheckSelfPermission(ctx, p)
	}
	if c.Fallback != nil {
		return c.Fallback.CheckSelfPermission(ctx, p)
	}
	return PermissionDenied
}
