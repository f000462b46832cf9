package httpapi

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/notebook"
)

// settingsView hides the API key.
type settingsView struct {
	core.Settings
	APIKey    string `json:"apiKey,omitempty"`
	HasAPIKey bool   `json:"hasApiKey"`
}

func view(s core.Settings) settingsView {
	return settingsView{Settings: s, HasAPIKey: s.HasCredential()}
}

func (s *Server) getSettings(c *gin.Context) {
	settings, err := s.nb.Settings(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	done, err := s.nb.Onboarded(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": view(settings), "onboarded": done})
}

// bindSettings reads a settings body. An omitted apiKey keeps the stored
// one.
func (s *Server) bindSettings(c *gin.Context) (core.Settings, bool) {
	var req core.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return req, false
	}
	if req.APIKey == "" {
		current, err := s.nb.Settings(c.Request.Context())
		if err != nil {
			s.fail(c, err)
			return req, false
		}
		req.APIKey = current.APIKey
	}
	return req, true
}

func (s *Server) saveSettings(c *gin.Context) {
	req, ok := s.bindSettings(c)
	if !ok {
		return
	}
	saved, err := s.nb.SaveSettings(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(saved))
}

func (s *Server) onboard(c *gin.Context) {
	req, ok := s.bindSettings(c)
	if !ok {
		return
	}
	saved, err := s.nb.Onboard(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view(saved))
}

func formatOf(c *gin.Context) string {
	if f := c.Query("format"); f != "" {
		return f
	}
	if strings.Contains(c.ContentType(), "yaml") {
		return notebook.FormatYAML
	}
	return notebook.FormatJSON
}

func (s *Server) export(c *gin.Context) {
	snap, err := s.nb.Export(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	format := formatOf(c)
	var buf bytes.Buffer
	if err := notebook.EncodeSnapshot(&buf, snap, format); err != nil {
		badRequest(c, err)
		return
	}
	contentType := "application/json"
	if format == notebook.FormatYAML || format == "yml" {
		contentType = "application/yaml"
	}
	c.Header("Content-Disposition", `attachment; filename="notetaker-export.`+format+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

func (s *Server) importSnapshot(c *gin.Context) {
	snap, err := notebook.DecodeSnapshot(c.Request.Body, formatOf(c))
	if err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.nb.Import(c.Request.Context(), snap)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
