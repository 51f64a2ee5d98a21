package http

import (
	"net/http"

	"github.com/Tonic56/coinfolio/internal/handler/middleware"
	"github.com/Tonic56/coinfolio/internal/models"
	"github.com/Tonic56/coinfolio/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type postRequest struct {
	Title   string  `json:"title"`
	Content *string `json:"content"`
	Link    *string `json:"link"`
}

type reactionRequest struct {
	Kind models.ReactionType `json:"kind" binding:"required"`
}

type usernameRequest struct {
	Username string `json:"username" binding:"required"`
}

func parseReaction(s string) (models.ReactionType, bool) {
	switch models.ReactionType(s) {
	case models.Like, models.Dislike:
		return models.ReactionType(s), true
	}
	return "", false
}

func (h *Handler) listPosts(c *gin.Context) {
	var viewer *uuid.UUID
	if id, ok := middleware.Identity(c); ok {
		viewer = &id.UserID
	}

	posts, err := h.posts.List(c.Request.Context(), viewer)
	if err != nil {
		h.fail(c, err, "failed to list posts")
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) createPost(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), id.UserID, id.Email, service.NewPost{
		Title:   req.Title,
		Content: req.Content,
		Link:    req.Link,
	})
	if err != nil {
		h.fail(c, err, "failed to create post")
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *Handler) deletePost(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}
	postID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.posts.Delete(c.Request.Context(), id.UserID, postID); err != nil {
		h.fail(c, err, "failed to delete post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "post deleted"})
}

func (h *Handler) react(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}
	postID, ok := pathID(c)
	if !ok {
		return
	}

	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind is required"})
		return
	}
	kind, ok := parseReaction(string(req.Kind))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be like or dislike"})
		return
	}

	res, err := h.reactions.React(c.Request.Context(), id.UserID, postID, kind)
	if err != nil {
		h.fail(c, err, "failed to react")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) getProfile(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), id.UserID)
	if err != nil {
		h.fail(c, err, "failed to get profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) setUsername(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}

	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	st, err := h.sessions.CompleteProfile(c.Request.Context(), id, req.Username)
	if err != nil {
		h.fail(c, err, "failed to set username")
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) reactedPosts(c *gin.Context) {
	id, ok := h.caller(c)
	if !ok {
		return
	}

	kind, ok := parseReaction(c.DefaultQuery("kind", string(models.Like)))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be like or dislike"})
		return
	}

	posts, err := h.posts.ReactedBy(c.Request.Context(), id.UserID, kind)
	if err != nil {
		h.fail(c, err, "failed to list reacted posts")
		return
	}
	c.JSON(http.StatusOK, posts)
}
