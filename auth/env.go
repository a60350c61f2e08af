package auth

import (
	"context"
	"os"
)

// envVars maps environment variable names to cookie names.
var envVars = map[string]string{
	"MAL_SESSION_ID":     SessionCookie,
	"MAL_HLOG_SESSION":   "MALHLOGSESSID",
	"MAL_LOGGED_IN_FLAG": "is_logged_in",
}

// EnvSource reads session cookies from environment variables.
type EnvSource struct{}

// Cookies returns cookies found in the environment.
func (EnvSource) Cookies(_ context.Context) (map[string]string, error) {
	cookies := make(map[string]string)
	for envVar, cookieName := range envVars {
		if value := os.Getenv(envVar); value != "" {
			cookies[cookieName] = value
		}
	}

	if len(cookies) == 0 {
		return nil, nil //nolint:nilnil // no env vars set is not an error
	}
	return cookies, nil
}
