// Package api is the sync server: the authenticated HTTP receiver that
// routes normalized capture events to the workflow writer and the manifest
// reconciler. It is the only writer of the file representation at runtime.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"flowsync/pkg/logging"
	"flowsync/internal/workflows"
	"flowsync/pkg/models"
)

// Server holds the dependencies for the webhook routes.
type Server struct {
	writer     *workflows.Writer
	reconciler *Reconciler
	logger     *logging.Logger
}

// NewServer creates a Server.
func NewServer(writer *workflows.Writer, reconciler *Reconciler, logger *logging.Logger) *Server {
	return &Server{writer: writer, reconciler: reconciler, logger: logger}
}

// NewEcho builds the echo instance with all routes registered. The health
// check stays outside the secret middleware.
func (s *Server) NewEcho(secret string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("10M"))

	e.GET(RouteHealth, s.HandleHealth)

	hooks := e.Group("/webhook", RequireSecret(secret, s.logger))
	hooks.POST("/workflow-save", s.HandleWorkflowSave)
	hooks.POST("/workflow-delete", s.HandleWorkflowDelete)
	hooks.POST("/credential-save", s.HandleCredentialSave)
	hooks.POST("/credential-delete", s.HandleCredentialDelete)

	if secret == "" {
		s.logger.Warn("authentication disabled: no webhook secret configured")
	}
	return e
}

// HandleHealth returns a liveness payload. No auth.
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Service:   "flowsync",
		Version:   "1.0.0",
	})
}

// HandleWorkflowSave persists a cleaned workflow document to its canonical
// path.
func (s *Server) HandleWorkflowSave(c echo.Context) error {
	var payload models.WorkflowSavePayload
	if err := c.Bind(&payload); err != nil {
		return problem(c, http.StatusBadRequest, "invalid payload", err.Error())
	}
	if payload.Workflow == nil || payload.OriginalName == "" {
		return problem(c, http.StatusBadRequest, "invalid payload", "missing workflow or originalName")
	}

	s.logger.Info("received workflow save: %s (event=%s, folder=%s)",
		payload.OriginalName, payload.Event, orRoot(payload.FolderPath))

	path, err := s.writer.Save(payload.Workflow, payload.OriginalName, payload.WorkflowID, payload.FolderPath)
	if err != nil {
		s.logger.Error("failed to save workflow %s: %v", payload.OriginalName, err)
		return problem(c, http.StatusInternalServerError, "failed to save workflow", err.Error())
	}

	s.logger.Info("saved workflow: %s -> %s", payload.OriginalName, path)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "path": path})
}

// HandleWorkflowDelete removes the workflow file matching the payload's id
// or name. An already-absent file is a benign outcome.
func (s *Server) HandleWorkflowDelete(c echo.Context) error {
	var payload models.WorkflowDeletePayload
	if err := c.Bind(&payload); err != nil {
		return problem(c, http.StatusBadRequest, "invalid payload", err.Error())
	}
	if payload.WorkflowName == "" && payload.WorkflowID == "" {
		return problem(c, http.StatusBadRequest, "invalid payload", "missing workflowName")
	}

	idOrName := payload.WorkflowID
	if idOrName == "" {
		idOrName = payload.WorkflowName
	}
	s.logger.Info("received workflow delete: %s (event=%s)", idOrName, payload.Event)

	path, err := s.writer.Delete(idOrName)
	if errors.Is(err, workflows.ErrNotFound) && payload.WorkflowName != "" && payload.WorkflowName != idOrName {
		path, err = s.writer.Delete(payload.WorkflowName)
	}
	if errors.Is(err, workflows.ErrNotFound) {
		s.logger.Warn("workflow file not found: %s", idOrName)
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "message": "file not found"})
	}
	if err != nil {
		s.logger.Error("failed to delete workflow %s: %v", idOrName, err)
		return problem(c, http.StatusInternalServerError, "failed to delete workflow", err.Error())
	}

	s.logger.Info("deleted workflow: %s (%s)", idOrName, path)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "path": path})
}

// HandleCredentialSave reconciles a credential into the manifest's auto
// section. Values are never part of the payload, only field names are
// declared.
func (s *Server) HandleCredentialSave(c echo.Context) error {
	var payload models.CredentialSavePayload
	if err := c.Bind(&payload); err != nil {
		return problem(c, http.StatusBadRequest, "invalid payload", err.Error())
	}
	if payload.Name == "" || payload.Type == "" {
		return problem(c, http.StatusBadRequest, "invalid payload", "missing name or type")
	}

	s.logger.Info("received credential save: %s (id=%s, type=%s, event=%s)",
		payload.Name, payload.ID, payload.Type, payload.Event)

	if err := s.reconciler.SaveCredential(c.Request().Context(), payload.ID, payload.Name, payload.Type); err != nil {
		s.logger.Error("failed to save credential %s: %v", payload.Name, err)
		return problem(c, http.StatusInternalServerError, "failed to save credential", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "id": payload.ID})
}

// HandleCredentialDelete removes a manifest entry by stable credential id.
func (s *Server) HandleCredentialDelete(c echo.Context) error {
	var payload models.CredentialDeletePayload
	if err := c.Bind(&payload); err != nil {
		return problem(c, http.StatusBadRequest, "invalid payload", err.Error())
	}
	if payload.ID == "" {
		return problem(c, http.StatusBadRequest, "invalid payload", "missing credential id")
	}

	s.logger.Info("received credential delete: %s (event=%s)", payload.ID, payload.Event)

	deleted, err := s.reconciler.DeleteCredential(payload.ID)
	if err != nil {
		s.logger.Error("failed to delete credential %s: %v", payload.ID, err)
		return problem(c, http.StatusInternalServerError, "failed to delete credential", err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "deleted": deleted})
}

// problem writes an RFC 7807 style error body.
func problem(c echo.Context, status int, title, detail string) error {
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	return c.JSON(status, models.ProblemDetails{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func orRoot(folderPath string) string {
	if folderPath == "" {
		return "root"
	}
	return folderPath
}
