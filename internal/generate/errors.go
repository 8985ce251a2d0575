package generate

import (
	"errors"
	"fmt"
)

// User-facing generation failures.
var (
	ErrMissingAPIKey     = errors.New("no api key found, add it in settings first")
	ErrEmptyEntry        = errors.New("write something first, i need something to work with!")
	ErrNoTopics          = errors.New("no topics set, add some in settings")
	ErrMalformedResponse = errors.New("got a weird response, try again?")
)

// ProviderError is a non-2xx answer from the generation endpoint.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error %d", e.Status)
}
