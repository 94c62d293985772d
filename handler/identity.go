package handler

import (
	"context"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
)

// Identity is the function name and version seen by an invocation.
type Identity struct {
	FunctionName    string
	FunctionVersion string
}

// IdentityResolver extracts the identity from an invocation context.
type IdentityResolver func(ctx context.Context) (Identity, bool)

type identityKey struct{}

// WithIdentity attaches an explicit identity to ctx. It takes precedence over
// what the Lambda runtime reports.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// ResolveIdentity is the default resolver. It prefers an identity attached
// with WithIdentity, then the runtime's function name and version, and
// finally the function name from the invoked ARN.
func ResolveIdentity(ctx context.Context) (Identity, bool) {
	if id, ok := IdentityFromContext(ctx); ok {
		return id, id.FunctionName != "" || id.FunctionVersion != ""
	}

	id := Identity{
		FunctionName:    lambdacontext.FunctionName,
		FunctionVersion: lambdacontext.FunctionVersion,
	}
	if id.FunctionName == "" {
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			id.FunctionName = functionNameFromARN(lc.InvokedFunctionArn)
		}
	}
	return id, id.FunctionName != "" || id.FunctionVersion != ""
}

// functionNameFromARN extracts the name from
// arn:aws:lambda:<region>:<account>:function:<name>[:<qualifier>].
func functionNameFromARN(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) < 7 || parts[0] != "arn" || parts[5] != "function" {
		return ""
	}
	return parts[6]
}
