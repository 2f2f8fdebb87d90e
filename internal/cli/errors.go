package cli

import (
	"errors"
	"fmt"

	"github.com/jonwraymond/toolify/resilience"
)

// ErrTooLarge is returned for uploads over provider.max_upload_bytes.
var ErrTooLarge = errors.New("file exceeds the upload limit")

// userError rewrites pool errors into something an operator can act on.
// Other errors pass through.
func userError(err error) error {
	if err == nil {
		return nil
	}
	if wait, ok := resilience.RetryAfter(err); ok {
		return fmt.Errorf("all API keys are rate limited, retry in %ds: %w", int(wait.Seconds()+0.999), err)
	}
	var re *resilience.RetriesExhaustedError
	if errors.As(err, &re) {
		return fmt.Errorf("still rate limited after %d attempts: %w", re.Attempts, err)
	}
	return err
}
