package auth

import (
	"net/http"
)

// AuthMiddleware identifies the caller from an API key, bearer token or
// session cookie and stores the user id in the request context. Requests
// without valid credentials pass through anonymously; operations reject them
// in Authorize. Cookie sessions past half their lifetime get a fresh cookie.
func (h *AuthHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		input := AuthInput{
			Cookie:        r.Header.Get("Cookie"),
			Authorization: r.Header.Get("Authorization"),
			APIKey:        r.Header.Get("X-API-KEY"),
		}
		userID, err := h.resolve(r.Context(), input)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		if input.APIKey == "" && input.Authorization == "" {
			h.refresh(w, input.Cookie, userID)
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, cookie string, userID uint) {
	_, exp, err := h.ParseToken(cookieValue(cookie))
	if err != nil {
		return
	}
	if exp.Sub(h.now()) >= TokenDuration/2 {
		return
	}
	token, err := h.GenerateToken(userID)
	if err != nil {
		return
	}
	http.SetCookie(w, h.sessionCookie(token))
}
