package transport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	// HeaderRequestedWith marks requests from the first-party browser
	// client; only those may authenticate via the split cookie pair.
	HeaderRequestedWith = "X-Requested-With"
	browserMarker       = "XMLHttpRequest"

	// CookiePayload holds the token's payload segment. It is the one
	// cookie deliberately NOT httpOnly, so a first-party script can
	// introspect claims; alone it cannot reconstruct a valid token.
	CookiePayload = "tid_payload"
	// CookieSignature holds "header.signature" and stays httpOnly.
	CookieSignature = "tid_signature"
	// CookieSession holds the opaque session id, httpOnly.
	CookieSession = "tid_session"
)

// ErrNoCredential is returned when neither the Authorization header nor
// the browser cookie pair yields a usable token.
var ErrNoCredential = errors.New("no usable credential")

// Transport normalizes however a client sent its token into a single
// bearer string, and symmetrically delivers freshly issued tokens back
// in the form that client expects.
type Transport struct {
	cookieLifetime time.Duration
}

// New creates a Transport. cookieLifetime should match the refresh
// token lifetime so cookies and session expire together.
func New(cookieLifetime time.Duration) *Transport {
	return &Transport{cookieLifetime: cookieLifetime}
}

// IsBrowser reports whether the request self-identifies as coming from
// the first-party browser client.
func (t *Transport) IsBrowser(r *http.Request) bool {
	return r.Header.Get(HeaderRequestedWith) == browserMarker
}

// Extract returns the bearer token for this request. A well-formed
// Authorization header wins; otherwise, browser requests may present the
// split cookie pair, reassembled as header.payload.signature.
func (t *Transport) Extract(r *http.Request) (string, error) {
	if tok, ok := bearerFromHeader(r.Header.Get("Authorization")); ok {
		return tok, nil
	}

	if t.IsBrowser(r) {
		if tok, ok := tokenFromCookies(r); ok {
			return tok, nil
		}
	}

	return "", ErrNoCredential
}

// SessionID returns the session id cookie, if present.
func (t *Transport) SessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieSession)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// DeliverTokens sends a freshly issued access token and session id back
// to the client. Browser clients (and explicit redirects) get the split
// cookie trio and an empty or redirect response; API clients get a JSON
// body.
func (t *Transport) DeliverTokens(w http.ResponseWriter, r *http.Request, accessToken, sessionID, redirectTo string) error {
	if t.IsBrowser(r) || redirectTo != "" {
		parts := strings.Split(accessToken, ".")
		if len(parts) != 3 {
			return errors.New("access token is not three segments")
		}

		maxAge := int(t.cookieLifetime.Seconds())
		http.SetCookie(w, t.cookie(CookiePayload, parts[1], maxAge, false))
		http.SetCookie(w, t.cookie(CookieSignature, parts[0]+"."+parts[2], maxAge, true))
		http.SetCookie(w, t.cookie(CookieSession, sessionID, maxAge, true))

		if redirectTo != "" {
			http.Redirect(w, r, redirectTo, http.StatusSeeOther)
			return nil
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]string{
		"access_token": accessToken,
		"session_id":   sessionID,
	})
}

// ClearCredentials instructs the client to drop all credential cookies.
// Same names, expiry in the past.
func (t *Transport) ClearCredentials(w http.ResponseWriter) {
	http.SetCookie(w, t.cookie(CookiePayload, "", -1, false))
	http.SetCookie(w, t.cookie(CookieSignature, "", -1, true))
	http.SetCookie(w, t.cookie(CookieSession, "", -1, true))
}

func (t *Transport) cookie(name, value string, maxAge int, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   true,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteNoneMode,
	}
}

func bearerFromHeader(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func tokenFromCookies(r *http.Request) (string, bool) {
	payload, err := r.Cookie(CookiePayload)
	if err != nil || payload.Value == "" {
		return "", false
	}
	sig, err := r.Cookie(CookieSignature)
	if err != nil || sig.Value == "" {
		return "", false
	}

	hs := strings.Split(sig.Value, ".")
	if len(hs) != 2 {
		return "", false
	}

	return hs[0] + "." + payload.Value + "." + hs[1], true
}
