package http

import (
	"net/http"

	"github.com/Tonic56/coinfolio/internal/handler/middleware"
	"github.com/Tonic56/coinfolio/internal/identity"
	"github.com/Tonic56/coinfolio/internal/session"
	"github.com/gin-gonic/gin"
)

type signUpRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Username        string `json:"username"`
	CaptchaToken    string `json:"captcha_token"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string         `json:"access_token,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty"`
	ExpiresIn    int            `json:"expires_in,omitempty"`
	Status       session.Status `json:"status"`
}

func newSessionResponse(sess *identity.Session, st session.Status) sessionResponse {
	resp := sessionResponse{Status: st}
	if sess != nil {
		resp.AccessToken = sess.AccessToken
		resp.RefreshToken = sess.RefreshToken
		resp.ExpiresIn = sess.ExpiresIn
	}
	return resp
}

func (h *Handler) signUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sess, st, err := h.sessions.SignUp(c.Request.Context(), session.SignUpRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Username:        req.Username,
		CaptchaToken:    req.CaptchaToken,
	})
	if err != nil {
		h.fail(c, err, "sign up failed")
		return
	}

	c.JSON(http.StatusCreated, newSessionResponse(sess, st))
}

func (h *Handler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sess, st, err := h.sessions.SignIn(c.Request.Context(), identity.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err, "sign in failed")
		return
	}

	c.JSON(http.StatusOK, newSessionResponse(sess, st))
}

func (h *Handler) signOut(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}

	if err := h.sessions.SignOut(c.Request.Context(), id, middleware.AccessToken(c)); err != nil {
		h.log.Warn("token revocation failed", "userID", id.UserID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "signed out"})
}

func (h *Handler) oauthURL(c *gin.Context) {
	url, err := h.sessions.OAuthURL(c.Param("provider"))
	if err != nil {
		h.fail(c, err, "oauth url failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// currentSession resolves the session for the bearer token, provisioning a
// profile for federated users on first sight.
func (h *Handler) currentSession(c *gin.Context) {
	var idp *session.Identity
	if id, ok := middleware.Identity(c); ok {
		idp = &id
	}

	st, err := h.sessions.Establish(c.Request.Context(), idp)
	if err != nil {
		h.fail(c, err, "establish session failed")
		return
	}
	c.JSON(http.StatusOK, newSessionResponse(nil, st))
}
