package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/notebook"
)

type draftRequest struct {
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	ProjectID   string            `json:"projectId"`
	SubjectID   string            `json:"subjectId"`
	Project     string            `json:"project"`
	Subject     string            `json:"subject"`
	Summary     string            `json:"summary"`
	Todos       []string          `json:"todos"`
	KeyPeople   []string          `json:"keyPeople"`
	Tags        []string          `json:"tags"`
	Decisions   []string          `json:"decisions"`
	Attachments []core.Attachment `json:"attachments"`
	IsTemplate  bool              `json:"isTemplate"`
}

// patchRequest leaves fields that are null untouched.
type patchRequest struct {
	Title         *string            `json:"title"`
	Content       *string            `json:"content"`
	ProjectID     *string            `json:"projectId"`
	SubjectID     *string            `json:"subjectId"`
	Tags          *[]string          `json:"tags"`
	Todos         *[]string          `json:"todos"`
	KeyPeople     *[]string          `json:"keyPeople"`
	Decisions     *[]string          `json:"decisions"`
	Attachments   *[]core.Attachment `json:"attachments"`
	IsArchived    *bool              `json:"isArchived"`
	IsTemplate    *bool              `json:"isTemplate"`
	DisableAiSync *bool              `json:"disableAiSync"`
}

func (p patchRequest) apply(n *core.Note) {
	set(&n.Title, p.Title)
	set(&n.Content, p.Content)
	set(&n.ProjectID, p.ProjectID)
	set(&n.SubjectID, p.SubjectID)
	set(&n.Tags, p.Tags)
	set(&n.Todos, p.Todos)
	set(&n.KeyPeople, p.KeyPeople)
	set(&n.Decisions, p.Decisions)
	set(&n.Attachments, p.Attachments)
	set(&n.IsArchived, p.IsArchived)
	set(&n.IsTemplate, p.IsTemplate)
	set(&n.DisableAiSync, p.DisableAiSync)
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (s *Server) listNotes(c *gin.Context) {
	f := notebook.Filter{
		ProjectID: c.Query("projectId"),
		SubjectID: c.Query("subjectId"),
		Tag:       c.Query("tag"),
		Query:     c.Query("q"),
	}
	f.Archived, _ = strconv.ParseBool(c.DefaultQuery("archived", "false"))
	f.Templates, _ = strconv.ParseBool(c.DefaultQuery("templates", "false"))
	c.JSON(http.StatusOK, s.nb.List(f))
}

func (s *Server) listTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, s.nb.Templates())
}

func (s *Server) createNote(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := s.nb.Create(c.Request.Context(), notebook.Draft{
		Title:       req.Title,
		Content:     req.Content,
		ProjectID:   req.ProjectID,
		SubjectID:   req.SubjectID,
		Project:     req.Project,
		Subject:     req.Subject,
		Summary:     req.Summary,
		Todos:       req.Todos,
		KeyPeople:   req.KeyPeople,
		Tags:        req.Tags,
		Decisions:   req.Decisions,
		Attachments: req.Attachments,
		IsTemplate:  req.IsTemplate,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) createFromTemplate(c *gin.Context) {
	n, err := s.nb.CreateFromTemplate(c.Request.Context(), c.Param("templateId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) getNote(c *gin.Context) {
	n, err := s.nb.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) replaceContent(c *gin.Context) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := s.nb.SetContent(c.Request.Context(), c.Param("id"), req.Title, req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) patchNote(c *gin.Context) {
	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := s.nb.Update(c.Request.Context(), c.Param("id"), req.apply)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) deleteNote(c *gin.Context) {
	if err := s.nb.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type statusResponse struct {
	Save          string `json:"save"`
	SaveError     string `json:"saveError,omitempty"`
	Enrichment    string `json:"enrichment"`
	EnrichmentErr string `json:"enrichmentError,omitempty"`
}

func (s *Server) noteStatus(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.nb.Get(id); err != nil {
		s.fail(c, err)
		return
	}
	save, saveErr := s.nb.SaveStatus(id)
	enr, enrErr := s.nb.EnrichmentStatus(id)
	res := statusResponse{Save: save.String(), Enrichment: enr.String()}
	if saveErr != nil {
		res.SaveError = saveErr.Error()
	}
	if enrErr != nil {
		res.EnrichmentErr = enrErr.Error()
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) flushNote(c *gin.Context) {
	if err := s.nb.Flush(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listVersions(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.nb.Get(id); err != nil {
		s.fail(c, err)
		return
	}
	versions, err := s.nb.Versions(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (s *Server) restoreVersion(c *gin.Context) {
	n, err := s.nb.Restore(c.Request.Context(), c.Param("id"), c.Param("versionId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) enrichNote(c *gin.Context) {
	n, err := s.nb.Enrich(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (s *Server) transformNote(c *gin.Context) {
	var req struct {
		Kind      string `json:"kind" binding:"required"`
		Language  string `json:"language"`
		Tone      string `json:"tone"`
		Selection string `json:"selection"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := s.nb.Transform(c.Request.Context(), c.Param("id"), notebook.Action{
		Kind:      notebook.ActionKind(req.Kind),
		Language:  req.Language,
		Tone:      req.Tone,
		Selection: req.Selection,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}
