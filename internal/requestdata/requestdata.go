package requestdata

import (
	"context"
	"regexp"
	"strings"
)

type requestDataKey struct{}

// RequestData carries per-request caller identity. UserID is an opaque
// ownership key; no other meaning is attached to it.
type RequestData struct {
	UserID string
	APIKey string
}

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,128}$`)

// SanitizeUserID returns the trimmed id when it matches the allowed shape,
// otherwise "".
func SanitizeUserID(raw string) string {
	candidate := strings.TrimSpace(raw)
	if candidate == "" || !userIDPattern.MatchString(candidate) {
		return ""
	}
	return candidate
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
