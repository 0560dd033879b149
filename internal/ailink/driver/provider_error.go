package driver

import "fmt"

// ProviderError is returned when a provider responds with a non-2xx status.
//
// Status and Reason carry the structured error fields of the provider body
// (for Google APIs: error.status such as RESOURCE_EXHAUSTED and the first
// details[].reason such as API_KEY_INVALID). RawResponse must never include
// API keys.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Status      string
	Reason      string
	Message     string
	RawResponse []byte
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	label := e.Status
	if e.Reason != "" {
		label = e.Reason
	}
	switch {
	case e.StatusCode > 0 && label != "":
		return fmt.Sprintf("%s request failed: status %d (%s): %s", e.Provider, e.StatusCode, label, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}
