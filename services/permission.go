package services

import (
	"context"
	"slices"
)

// PermissionGate is consulted before every mutating or scanning entry point.
type PermissionGate interface {
	Allowed(ctx context.Context) bool
}

type principalKey struct{}

// Principal is the caller identity attached to a request context.
type Principal struct {
	UserID       string
	Role         string
	Capabilities []string
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal attached to ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// CapabilityGate admits callers holding Role or Capability.
type CapabilityGate struct {
	Role       string
	Capability string
}

func (g CapabilityGate) Allowed(ctx context.Context) bool {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return false
	}
	if g.Role != "" && p.Role == g.Role {
		return true
	}
	return g.Capability != "" && slices.Contains(p.Capabilities, g.Capability)
}

// AllowAll admits every caller. It backs the operator CLI.
type AllowAll struct{}

func (AllowAll) Allowed(context.Context) bool { return true }
