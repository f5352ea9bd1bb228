package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rolegate/rolegate/pkg/verify"
)

// flowCookieName carries the pending token across the OIDC redirect
// round trips.
const flowCookieName = "rolegate_flow"

var errBadFlowCookie = errors.New("missing or invalid flow cookie")

// flowCookies signs and verifies the transient verification-flow
// cookie. The token inside is already an unguessable single-use value;
// the signature stops a forged cookie from steering someone else's
// callback.
type flowCookies struct {
	secret []byte
	secure bool
}

func newFlowCookies(secret string, secure bool) *flowCookies {
	return &flowCookies{secret: []byte(secret), secure: secure}
}

func (c *flowCookies) sign(value string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Set writes the flow cookie for a token. It expires with the token.
func (c *flowCookies) Set(w http.ResponseWriter, token string) {
	value := token + "." + c.sign(token)
	http.SetCookie(w, &http.Cookie{
		Name:     flowCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(verify.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Token reads and verifies the flow cookie, returning the pending
// token it carries.
func (c *flowCookies) Token(r *http.Request) (string, error) {
	cookie, err := r.Cookie(flowCookieName)
	if err != nil {
		return "", errBadFlowCookie
	}

	token, signature, found := strings.Cut(cookie.Value, ".")
	if !found || token == "" {
		return "", errBadFlowCookie
	}
	if !hmac.Equal([]byte(signature), []byte(c.sign(token))) {
		return "", fmt.Errorf("%w: bad signature", errBadFlowCookie)
	}
	return token, nil
}

// Clear removes the flow cookie once the flow finishes.
func (c *flowCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     flowCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
