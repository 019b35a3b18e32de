package handlers

import (
	"net/http"
	"strconv"

	"threadline/internal/models"
	"threadline/internal/services"
	"threadline/internal/utils"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	svc *services.CommentService
}

func NewCommentHandler(svc *services.CommentService) *CommentHandler {
	return &CommentHandler{svc: svc}
}

type commentView struct {
	models.Comment
	IDCode string `json:"id_code"`
	Path   string `json:"path"`
	Title  string `json:"title"`
}

func view(c models.Comment) commentView {
	return commentView{Comment: c, IDCode: c.IDCode(), Path: c.Path(), Title: c.Title()}
}

type threadNode struct {
	commentView
	Children []threadNode `json:"children"`
}

func threadView(nodes []*services.TreeNode) []threadNode {
	out := make([]threadNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, threadNode{commentView: view(n.Comment), Children: threadView(n.Children)})
	}
	return out
}

type flatView struct {
	commentView
	Depth int `json:"depth"`
}

// Thread renders the comment tree of an article or podcast episode.
// ?flat=1 returns display order with depths instead of nesting.
func (h *CommentHandler) Thread(c *gin.Context) {
	typ, ok := models.CommentableTypeFromSlug(c.Param("type"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown commentable type"})
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var minScore *int
	if raw := c.Query("min_score"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "invalid min_score")
			return
		}
		minScore = &v
	}

	ref := models.CommentableRef{Type: typ, ID: id}
	roots, err := h.svc.TreeFor(c.Request.Context(), ref, minScore)
	if err != nil {
		RespondError(c, err)
		return
	}

	if c.Query("flat") == "1" {
		flat := services.FlattenTree(roots)
		rows := make([]flatView, 0, len(flat))
		for _, f := range flat {
			rows = append(rows, flatView{commentView: view(f.Comment), Depth: f.Depth})
		}
		c.JSON(http.StatusOK, gin.H{"commentable": ref.String(), "comments": rows})
		return
	}
	c.JSON(http.StatusOK, gin.H{"commentable": ref.String(), "comments": threadView(roots)})
}

func (h *CommentHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	comment, err := h.svc.Find(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view(comment))
}

func (h *CommentHandler) Title(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	title, err := h.svc.Title(c.Request.Context(), id, utils.StringToInt(c.Query("length")))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": title})
}

type createRequest struct {
	CommentableType string `json:"commentable_type"`
	CommentableID   uint   `json:"commentable_id"`
	ParentID        *uint  `json:"parent_id"`
	BodyMarkdown    string `json:"body_markdown"`
}

func (h *CommentHandler) Create(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	comment, err := h.svc.Create(c.Request.Context(), services.CreateCommentInput{
		UserID:          user.ID,
		CommentableType: req.CommentableType,
		CommentableID:   req.CommentableID,
		ParentID:        req.ParentID,
		BodyMarkdown:    req.BodyMarkdown,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view(comment))
}

func (h *CommentHandler) Update(c *gin.Context) {
	comment, ok := h.owned(c)
	if !ok {
		return
	}
	var req services.UpdateCommentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	updated, err := h.svc.Update(c.Request.Context(), comment.ID, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view(updated))
}

type scoreRequest struct {
	Score *int `json:"score" binding:"required"`
}

func (h *CommentHandler) SetScore(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "score is required")
		return
	}
	if err := h.svc.SetScore(c.Request.Context(), id, *req.Score); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "score": *req.Score})
}

// Delete soft deletes: the comment stays in the thread as "[deleted]".
func (h *CommentHandler) Delete(c *gin.Context) {
	comment, ok := h.owned(c)
	if !ok {
		return
	}
	deleted, res, err := h.svc.SoftDelete(c.Request.Context(), comment.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"comment":               view(deleted),
		"descendants":           res.Descendants,
		"notifications_updated": res.Updated,
	})
}

func (h *CommentHandler) Destroy(c *gin.Context) {
	comment, ok := h.owned(c)
	if !ok {
		return
	}
	res, err := h.svc.Destroy(c.Request.Context(), comment.ID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                    comment.ID,
		"descendants":           res.Descendants,
		"notifications_updated": res.Updated,
	})
}

// owned loads the :id comment and checks the current user wrote it.
func (h *CommentHandler) owned(c *gin.Context) (models.Comment, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return models.Comment{}, false
	}
	comment, err := h.svc.Find(c.Request.Context(), id)
	if err != nil {
		RespondError(c, err)
		return models.Comment{}, false
	}
	if user := currentUser(c); user == nil || user.ID != comment.UserID {
		RespondError(c, ErrForbidden)
		return models.Comment{}, false
	}
	return comment, true
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
