package llm

import "fmt"

// ProviderError reports a completion service failure after retries were
// exhausted. Status and Body are best-effort details from the last attempt.
type ProviderError struct {
	Status int
	Body   string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion provider error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("completion provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
