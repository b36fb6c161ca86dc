package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"quill/access"
	"quill/apperr"
)

const callerKey = "caller"

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// RequireUser rejects requests without a valid bearer token.
func (t *Tokens) RequireUser(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		apperr.Respond(c, apperr.ErrUnauthorized)
		return
	}
	subject, err := t.Verify(token)
	if err != nil {
		apperr.Respond(c, apperr.ErrUnauthorized)
		return
	}

	c.Set(callerKey, access.User(subject))
	c.Next()
}

// OptionalUser never rejects: a missing or unusable token leaves the
// request anonymous.
func (t *Tokens) OptionalUser(c *gin.Context) {
	caller := access.Anonymous()
	if token, ok := bearerToken(c); ok {
		if subject, err := t.Verify(token); err == nil {
			caller = access.User(subject)
		}
	}

	c.Set(callerKey, caller)
	c.Next()
}

// CallerOf returns the caller stored by RequireUser or OptionalUser, or an
// anonymous caller when neither ran.
func CallerOf(c *gin.Context) access.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(access.Caller); ok {
			return caller
		}
	}
	return access.Anonymous()
}
