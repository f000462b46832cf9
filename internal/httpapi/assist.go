package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aretw0/notetaker/pkg/notebook"
)

func (s *Server) ask(c *gin.Context) {
	var req struct {
		Question string `json:"question" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	answer, err := s.nb.Ask(c.Request.Context(), req.Question)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (s *Server) search(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	notes, err := s.nb.Search(c.Request.Context(), req.Query)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (s *Server) ingest(c *gin.Context) {
	var req struct {
		Name        string `json:"name" binding:"required"`
		MimeType    string `json:"mimeType"`
		Content     string `json:"content" binding:"required"`
		ProjectName string `json:"projectName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := s.nb.Ingest(c.Request.Context(), notebook.Upload{
		Name:        req.Name,
		MimeType:    req.MimeType,
		Content:     req.Content,
		ProjectName: req.ProjectName,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) meeting(c *gin.Context) {
	var req struct {
		Transcript  string   `json:"transcript" binding:"required"`
		Screenshots []string `json:"screenshots"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := s.nb.Meeting(c.Request.Context(), req.Transcript, req.Screenshots...)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}
