package auth

import "context"

type contextKey struct{}

// Method values recorded on a Client.
const (
	MethodNone   = "none"
	MethodAPIKey = "apikey"
)

// Client describes the caller of a request.
type Client struct {
	RequestID string
	Method    string
	// Authenticated is set once the caller proved a credential.
	Authenticated bool
}

func WithClient(ctx context.Context, c Client) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

func FromContext(ctx context.Context) (Client, bool) {
	c, ok := ctx.Value(contextKey{}).(Client)
	return c, ok
}

func RequestID(ctx context.Context) string {
	c, ok := FromContext(ctx)
	if !ok {
		return ""
	}
	return c.RequestID
}

func IsAuthenticated(ctx context.Context) bool {
	c, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return c.Authenticated
}
