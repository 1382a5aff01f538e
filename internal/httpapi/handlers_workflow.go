package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/archivecast/podgen/internal/apperr"
	"github.com/archivecast/podgen/internal/workflow"
)

// handleCreateWorkflow starts a new job over a set of speech IDs (§6.1
// "400 on empty speechIds").
func (s *Server) handleCreateWorkflow(c echo.Context) error {
	var req createWorkflowRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	wf, err := s.workflow.CreateWorkflow(c.Request().Context(), req.Name, req.SpeechIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toWorkflowResponse(wf))
}

// handleGetWorkflow resolves a workflow along with its speeches.
func (s *Server) handleGetWorkflow(c echo.Context) error {
	wf, err := s.workflow.GetWorkflow(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toWorkflowWithSpeechesResponse(wf))
}

// handleUploadScript overwrites a workflow's script and advances it to
// script_uploaded (§4.7).
func (s *Server) handleUploadScript(c echo.Context) error {
	var req uploadScriptRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.WorkflowID == "" {
		return respondError(c, apperr.Input("workflowId is required"))
	}

	if err := s.workflow.UploadScript(c.Request().Context(), req.WorkflowID, req.Script); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleGenerateScript runs the LLM Orchestrator over a workflow's
// resolved speeches, selecting a key under the precedence rule: the
// X-API-Key header, else the pool (unless usePool is explicitly false),
// else the configured environment key (§4.6).
func (s *Server) handleGenerateScript(c echo.Context) error {
	var req generateScriptRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.WorkflowID == "" {
		return respondError(c, apperr.Input("workflowId is required"))
	}

	usePool := true
	if req.UsePool != nil {
		usePool = *req.UsePool
	}

	outcome, err := s.workflow.GenerateScript(c.Request().Context(), req.WorkflowID, workflow.ScriptGenerationParams{
		Model: req.Model, Style: req.Style, Duration: req.Duration, BatchSize: req.BatchSize,
		UseSwarm: req.UseSwarm, ClientAPIKey: clientAPIKey(c), UsePool: usePool, EnvAPIKey: s.envAPIKey,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, generateScriptResponse{Script: outcome.Script, BatchProcessed: outcome.BatchProcessed})
}

// handleGenerateAudio invokes the TTS worker over the workflow's script and
// always advances status, even on synthesis failure (§4.7).
func (s *Server) handleGenerateAudio(c echo.Context) error {
	var req generateAudioRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.WorkflowID == "" {
		return respondError(c, apperr.Input("workflowId is required"))
	}

	outcome, err := s.workflow.GenerateAudio(c.Request().Context(), req.WorkflowID, workflow.AudioGenerationParams{
		Voice: req.Voice, Preset: req.Preset, OutputDir: req.OutputDir, CustomVoicePath: req.CustomVoicePath,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, generateAudioResponse{
		AudioURL: outcome.AudioURL, Success: outcome.TTSResult.Success, FellBack: outcome.FellBack,
	})
}

// handleFinalize requires both a script and audio URL, then writes either
// a local bundle or a standalone RSS file and advances to finalized
// (§4.7, §4.8).
func (s *Server) handleFinalize(c echo.Context) error {
	var req finalizeRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	if req.WorkflowID == "" {
		return respondError(c, apperr.Input("workflowId is required"))
	}

	outcome, err := s.workflow.Finalize(c.Request().Context(), req.WorkflowID, workflow.FinalizeParams{
		Title: req.Title, Description: req.Description, LocalBundle: req.LocalBundle,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, finalizeResponse{RSSURL: outcome.RSSURL, BundlePath: outcome.BundlePath})
}
