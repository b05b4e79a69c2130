package sequencer

import (
	"context"
	"errors"
	"net/url"
)

func isTimeout(err error) bool {
	return errors.Is(err, ErrReadinessTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// apiBaseURL reduces a health URL like http://127.0.0.1:11434/api/version to
// the daemon's API base, http://127.0.0.1:11434.
func apiBaseURL(healthURL string) string {
	u, err := url.Parse(healthURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return healthURL
	}
	return u.Scheme + "://" + u.Host
}
