package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Tonic56/coinfolio/internal/handler/middleware"
	"github.com/Tonic56/coinfolio/internal/identity"
	"github.com/Tonic56/coinfolio/internal/market"
	"github.com/Tonic56/coinfolio/internal/service"
	"github.com/Tonic56/coinfolio/internal/session"
	"github.com/Tonic56/coinfolio/lib/errs"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Market is the degrading read path; every method returns an empty result
// instead of an error.
type Market interface {
	FetchSnapshot(ctx context.Context) []market.Asset
	FetchTrending(ctx context.Context, dir market.Direction) []market.Asset
	FetchDetails(ctx context.Context, id string) *market.Asset
	FetchHistory(ctx context.Context, id string, interval market.Interval) []market.PricePoint
	Search(ctx context.Context, query string) []market.Asset
}

type Sessions interface {
	Establish(ctx context.Context, id *session.Identity) (session.Status, error)
	CompleteProfile(ctx context.Context, id session.Identity, username string) (session.Status, error)
	SignUp(ctx context.Context, req session.SignUpRequest) (*identity.Session, session.Status, error)
	SignIn(ctx context.Context, creds identity.Credentials) (*identity.Session, session.Status, error)
	SignOut(ctx context.Context, id session.Identity, accessToken string) error
	OAuthURL(provider string) (string, error)
}

type Streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, userID *uuid.UUID)
}

type Deps struct {
	Market       Market
	Transactions service.TransactionsService
	Posts        service.PostsService
	Reactions    service.ReactionsService
	Profiles     service.ProfilesService
	Sessions     Sessions
	Streamer     Streamer
}

type Handler struct {
	market       Market
	transactions service.TransactionsService
	posts        service.PostsService
	reactions    service.ReactionsService
	profiles     service.ProfilesService
	sessions     Sessions
	streamer     Streamer
	log          *slog.Logger
	jwtSecret    string
}

func NewHandler(deps Deps, log *slog.Logger, jwtSecret string) *Handler {
	return &Handler{
		market:       deps.Market,
		transactions: deps.Transactions,
		posts:        deps.Posts,
		reactions:    deps.Reactions,
		profiles:     deps.Profiles,
		sessions:     deps.Sessions,
		streamer:     deps.Streamer,
		log:          log,
		jwtSecret:    jwtSecret,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	requireAuth := middleware.AuthMiddleware(h.jwtSecret, h.log)
	optionalAuth := middleware.OptionalAuth(h.jwtSecret, h.log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		assets := api.Group("/assets")
		{
			assets.GET("", h.listAssets)
			assets.GET("/trending", h.trendingAssets)
			assets.GET("/search", h.searchAssets)
			assets.GET("/:id", h.assetDetails)
			assets.GET("/:id/history", h.assetHistory)
		}

		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.signUp)
			auth.POST("/signin", h.signIn)
			auth.GET("/oauth/:provider", h.oauthURL)
			auth.POST("/signout", requireAuth, h.signOut)
			auth.POST("/session", optionalAuth, h.currentSession)
		}

		portfolio := api.Group("/portfolio", requireAuth)
		{
			portfolio.GET("", h.holdings)
			portfolio.GET("/history", h.portfolioHistory)
			portfolio.GET("/transactions", h.listTransactions)
			portfolio.POST("/transactions", h.addTransaction)
			portfolio.PUT("/transactions/:id", h.updateTransaction)
			portfolio.DELETE("/transactions/:id", h.deleteTransaction)
		}

		api.GET("/posts", optionalAuth, h.listPosts)
		posts := api.Group("/posts", requireAuth)
		{
			posts.POST("", h.createPost)
			posts.DELETE("/:id", h.deletePost)
			posts.POST("/:id/reactions", h.react)
		}

		profile := api.Group("/profile", requireAuth)
		{
			profile.GET("", h.getProfile)
			profile.PUT("/username", h.setUsername)
			profile.GET("/reactions", h.reactedPosts)
		}

		api.GET("/ws", optionalAuth, h.wsConnect)
	}
}

func (h *Handler) wsConnect(c *gin.Context) {
	var userID *uuid.UUID
	if id, ok := middleware.Identity(c); ok {
		userID = &id.UserID
	}
	h.streamer.Serve(c.Writer, c.Request, userID)
}

// caller returns the authenticated identity or answers 401.
func (h *Handler) caller(c *gin.Context) (session.Identity, bool) {
	id, ok := middleware.Identity(c)
	if !ok {
		h.log.Error("handler: identity not found in context", "path", c.FullPath())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return session.Identity{}, false
	}
	return id, true
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// fail maps domain errors to statuses. Unknown errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error, msg string) {
	status, text := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error(msg, slog.Any("error", err))
		text = "internal server error"
	} else {
		h.log.Debug(msg, slog.Any("error", err))
	}
	c.JSON(status, gin.H{"error": text})
}

func errorStatus(err error) (int, string) {
	known := []struct {
		target error
		status int
	}{
		{errs.ErrPasswordMismatch, http.StatusBadRequest},
		{errs.ErrCaptchaRequired, http.StatusBadRequest},
		{errs.ErrInvalidInput, http.StatusBadRequest},
		{errs.ErrUnauthenticated, http.StatusUnauthorized},
		{errs.ErrForbidden, http.StatusForbidden},
		{errs.ErrNotFound, http.StatusNotFound},
		{errs.ErrAlreadyExists, http.StatusConflict},
		{errs.ErrPriceUnavailable, http.StatusBadGateway},
		{errs.ErrUpstream, http.StatusBadGateway},
	}
	for _, k := range known {
		if errors.Is(err, k.target) {
			return k.status, k.target.Error()
		}
	}
	return http.StatusInternalServerError, errs.ErrInternal.Error()
}
