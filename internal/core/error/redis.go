package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified Error type with appropriate
// status codes. A missing key maps to not-found; everything else is a
// retryable infrastructure failure, never an empty-state fallback.
func WrapRedis(err error) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(err, http.StatusNotFound, RedisNotFoundMessage)
	}

	return &Error{
		Err:       err,
		Status:    http.StatusBadGateway,
		Message:   RedisErrorMessage,
		Retryable: true,
	}
}
