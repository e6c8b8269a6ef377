package websocket

import (
	"net/http"
	"time"
)

// sessionID returns the session id from a valid cookie, or mints a new one
// together with the Set-Cookie header to send on the upgrade response.
func (that *Server) sessionID(req *http.Request) (string, http.Header, error) {
	log := that.logger.With("method", "sessionID")

	if cookie, err := req.Cookie(that.options.CookieName); err == nil {
		sessionID, err := that.signer.Parse(cookie.Value)
		if err == nil {
			return sessionID, nil, nil
		}

		log.Debug("session cookie rejected, issuing a new one", "error", err)
	}

	sessionID, err := that.newSessionID()
	if err != nil {
		return "", nil, err
	}

	token, err := that.signer.Issue(sessionID)
	if err != nil {
		return "", nil, err
	}

	cookie := &http.Cookie{
		Name:     that.options.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	if that.options.SessionTTL > 0 {
		cookie.Expires = time.Now().Add(that.options.SessionTTL)
	}

	header := http.Header{}
	header.Add("Set-Cookie", cookie.String())

	return sessionID, header, nil
}
