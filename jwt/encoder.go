package jwt

import (
	"encoding/json"
	"io/ioutil"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/bobinette/coursedocs/errors"
)

const issuer = "coursedocs"

// Claims identifies the caller of the sharing endpoints. Callers are LMS
// users (an admin triggering a resync) or the LMS itself pushing events,
// in which case UserID is 0 and Service is set. Tokens are checked by
// Middleware.
type Claims struct {
	UserID  int    `json:"user_id"`
	Service string `json:"service,omitempty"`
	jwt.StandardClaims
}

type Encoder struct {
	key []byte
	ttl time.Duration
}

func NewEncoder(key []byte, ttl time.Duration) *Encoder {
	return &Encoder{
		key: key,
		ttl: ttl,
	}
}

// ReadKey loads a signing key from a json file of the form {"k": "..."}.
func ReadKey(path string) ([]byte, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.New("could not open key file", errors.WithCause(err))
	}

	var key struct {
		Key string `json:"k"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, errors.New("could not read key file", errors.WithCause(err))
	} else if key.Key == "" {
		return nil, errors.New("empty signing key")
	}

	return []byte(key.Key), nil
}

func (e *Encoder) Encode(claims Claims) (string, error) {
	claims.Issuer = issuer
	if e.ttl > 0 {
		claims.ExpiresAt = time.Now().Add(e.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(e.key)
}
