package remember

import (
	"errors"
	"strings"
)

// ErrMalformedCookie is returned when a remember-cookie value does not parse.
var ErrMalformedCookie = errors.New("malformed remember cookie")

// Cookie is the decoded plaintext remember-cookie value:
// "<user_id> <series> <token>", space-delimited. Only digests of series and
// token are ever persisted.
type Cookie struct {
	UserID string
	Series string
	Token  string
}

// ParseCookie decodes a plaintext remember-cookie value.
func ParseCookie(value string) (Cookie, error) {
	parts := strings.Split(value, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Cookie{}, ErrMalformedCookie
	}
	return Cookie{UserID: parts[0], Series: parts[1], Token: parts[2]}, nil
}

// String encodes the cookie back to its plaintext value.
func (c Cookie) String() string {
	return c.UserID + " " + c.Series + " " + c.Token
}
