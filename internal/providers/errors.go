package providers

import "fmt"

// ProviderError wraps a failure from a specific provider's API, preserving
// the HTTP status and raw body for diagnostics.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// UnknownProviderError is returned when a chat request names a provider
// that has no registered driver.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider: %s", e.Provider)
}

// UnknownModelError describes a chat request naming a model that a
// provider does not list among its catalog. No code path in this package
// returns it: drivers and the registry pass model names through unchecked.
type UnknownModelError struct {
	Provider string
	Model    string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q for provider %s", e.Model, e.Provider)
}
