package providers

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// ValidatePayload checks a decoded provider payload against its validate
// tags. Third-party schemas are undocumented and change without notice, so
// a payload that does not match the expected shape fails the pass
// immediately instead of being silently coerced. Unknown extra fields are
// already dropped by the JSON decoding itself.
func ValidatePayload(provider string, payload any) error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	if err := validate.Struct(payload); err != nil {
		return fmt.Errorf("unexpected %s payload shape: %w", provider, err)
	}
	return nil
}
