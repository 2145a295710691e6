package jwt

import (
	"context"

	"github.com/dgrijalva/jwt-go"
	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"

	"github.com/bobinette/coursedocs/errors"
)

func Middleware(key []byte) endpoint.Middleware {
	return kitjwt.NewParser(func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.SigningMethodHS256, func() jwt.Claims {
		return &Claims{}
	})
}

// FromContext returns the claims stored by Middleware.
func FromContext(ctx context.Context) (Claims, error) {
	v := ctx.Value(kitjwt.JWTClaimsContextKey)
	if v == nil {
		return Claims{}, errors.New("no claims", errors.Unauthorized())
	}

	claims, ok := v.(*Claims)
	if !ok {
		return Claims{}, errors.New("invalid claims", errors.Forbidden())
	}
	return *claims, nil
}

// IsTokenError reports whether err was returned by Middleware because the
// bearer token is missing or invalid.
func IsTokenError(err error) bool {
	switch err {
	case kitjwt.ErrTokenContextMissing, kitjwt.ErrTokenInvalid, kitjwt.ErrTokenExpired,
		kitjwt.ErrTokenMalformed, kitjwt.ErrTokenNotActive, kitjwt.ErrUnexpectedSigningMethod,
		jwt.ErrSignatureInvalid:
		return true
	}

	_, ok := err.(*jwt.ValidationError)
	return ok
}
