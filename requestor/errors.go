package requestor

import "fmt"

// Recoverable reports whether an HTTP status code from a streaming or polling
// request should be retried. Per the shared recoverability table: 401 and 403, and
// any other 4xx except 408 and 429, are non-recoverable; everything else (5xx, 408,
// 429, and transport-level errors reported with statusCode 0) is recoverable.
func Recoverable(statusCode int) bool {
	switch statusCode {
	case 401, 403:
		return false
	case 408, 429:
		return true
	}
	if statusCode >= 400 && statusCode < 500 {
		return false
	}
	return true
}

// HTTPStatusError wraps a non-2xx response, carrying the status code so callers can
// classify it with Recoverable.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected response code %d when accessing URL: %s", e.StatusCode, e.URL)
}

func checkForHTTPError(statusCode int, url string) error {
	if statusCode == 401 {
		return HTTPStatusError{StatusCode: statusCode, URL: url}
	}
	if statusCode/100 != 2 {
		return HTTPStatusError{StatusCode: statusCode, URL: url}
	}
	return nil
}
