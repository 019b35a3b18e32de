package router

import (
	"threadline/internal/handlers"
	"threadline/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, comments *handlers.CommentHandler) {
	r.GET("/health", handlers.Health)

	// Public routes
	r.GET("/:type/:id/comments", comments.Thread) // type is articles or podcast_episodes
	r.GET("/comments/:id", comments.Show)
	r.GET("/comments/:id/title", comments.Title)

	// Protected routes; edits and deletes are further limited to the author
	authorized := r.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/comments", comments.Create)
		authorized.PATCH("/comments/:id", comments.Update)
		authorized.PUT("/comments/:id/score", comments.SetScore)
		authorized.DELETE("/comments/:id", comments.Delete)
		authorized.DELETE("/comments/:id/permanent", comments.Destroy)
	}
}
