package resilience

import "context"

// Retry runs op and, when it fails with an error that shouldRetry accepts,
// runs it exactly once more. Transient telephony failures get one second
// chance; anything else propagates immediately.
func Retry(ctx context.Context, shouldRetry func(error) bool, op func(context.Context) error) error {
	err := op(ctx)
	if err == nil || !shouldRetry(err) {
		return err
	}
	if ctx.Err() != nil {
		return err
	}
	return op(ctx)
}
