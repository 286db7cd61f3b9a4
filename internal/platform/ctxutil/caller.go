package ctxutil

import "context"

type callerDataKey struct{}

// CallerData identifies the authenticated principal behind a request.
type CallerData struct {
	CallerID string
	Roles    []string
}

func WithCallerData(ctx context.Context, cd *CallerData) context.Context {
	return context.WithValue(ctx, callerDataKey{}, cd)
}

func GetCallerData(ctx context.Context) *CallerData {
	if ctx == nil {
		return nil
	}
	if cd, ok := ctx.Value(callerDataKey{}).(*CallerData); ok {
		return cd
	}
	return nil
}

// CallerID returns the authenticated caller or "".
func CallerID(ctx context.Context) string {
	if cd := GetCallerData(ctx); cd != nil {
		return cd.CallerID
	}
	return ""
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
