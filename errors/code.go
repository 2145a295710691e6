package errors

import (
	"net/http"
)

func BadRequest() ErrorEnricher   { return WithCode(http.StatusBadRequest) }
func Unauthorized() ErrorEnricher { return WithCode(http.StatusUnauthorized) }
func Forbidden() ErrorEnricher    { return WithCode(http.StatusForbidden) }
func NotFound() ErrorEnricher     { return WithCode(http.StatusNotFound) }

// BadGateway marks a failure of an upstream API (Drive, LMS database).
func BadGateway() ErrorEnricher { return WithCode(http.StatusBadGateway) }

// CodeOf returns the code carried by err, DefaultCode if err is not an Error
// and 0 if err is nil.
func CodeOf(err error) int {
	if err == nil {
		return 0
	}

	if err, ok := err.(Error); ok {
		return err.Code()
	}
	return DefaultCode
}

// IsNotFound reports whether err was built with the NotFound enricher.
func IsNotFound(err error) bool {
	return CodeOf(err) == http.StatusNotFound
}
