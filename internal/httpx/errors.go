package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// FetchError reports a request that reached the server but came back unusable.
// URL never carries the query string.
type FetchError struct {
	Status int
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the status is worth another attempt later. Status 0 means the
// server never answered.
func (e *FetchError) Retryable() bool {
	return e.Status == 0 || e.Status == http.StatusRequestTimeout || shouldBackoff(e.Status)
}

func shouldBackoff(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if status >= 500 && status <= 599 {
		return true
	}
	return false
}

// redactURL drops userinfo, query and fragment: API keys travel there.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// redactError strips credentials from transport errors, which embed the request URL.
func redactError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = redactURL(ue.URL)
	}
	return err
}
