package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/archivecast/podgen/internal/domain"
)

// handleHealth reports liveness and a best-effort database ping (§6.1
// "GET /health").
func (s *Server) handleHealth(c echo.Context) error {
	dbStatus := "ok"
	if _, err := s.store.CountSpeeches(c.Request().Context()); err != nil {
		dbStatus = "error"
	}
	return c.JSON(http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Database:      dbStatus,
	})
}

// handleStatus reports per-source availability (from a live verify pass
// run on each request), the archive's speech count, and whether an LLM key is configured
// anywhere in the precedence chain.
func (s *Server) handleStatus(c echo.Context) error {
	ctx := c.Request().Context()
	verify := s.ingestion.VerifyAllSources(ctx)

	sources := make(map[string]sourceStatus, len(verify))
	for name, v := range verify {
		sources[name] = sourceStatus{Available: v.Available, Status: v.Status, Error: v.Error, Method: v.Method}
	}

	count, err := s.store.CountSpeeches(ctx)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, statusResponse{
		Sources:              sources,
		SpeechCount:          count,
		AIProviderConfigured: s.envAPIKey != "" || s.pool.Len() > 0,
		KeyPoolSize:          s.pool.Len(),
	})
}

// handleSearch resolves a bounded, paginated catalog search (§4.1).
func (s *Server) handleSearch(c echo.Context) error {
	filter := domain.SearchFilter{
		Keyword:   c.QueryParam("keyword"),
		StartDate: c.QueryParam("startDate"),
		EndDate:   c.QueryParam("endDate"),
		Limit:     queryInt(c, "limit", 50),
		Offset:    queryInt(c, "offset", 0),
	}
	filter.Clamp()

	result, err := s.store.SearchSpeeches(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}

	rows := make([]speechResponse, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = toSpeechResponse(row)
	}
	return c.JSON(http.StatusOK, searchResponse{Rows: rows, Total: result.Total})
}

// handleVerifySources fans out an availability probe to every registered
// adapter, admin-gated since it issues live network calls (§4.3).
func (s *Server) handleVerifySources(c echo.Context) error {
	verify := s.ingestion.VerifyAllSources(c.Request().Context())
	sources := make(map[string]sourceStatus, len(verify))
	for name, v := range verify {
		sources[name] = sourceStatus{Available: v.Available, Status: v.Status, Error: v.Error, Method: v.Method}
	}
	return c.JSON(http.StatusOK, sources)
}

// handleRefreshArchive triggers an on-demand populate cycle (§4.3).
func (s *Server) handleRefreshArchive(c echo.Context) error {
	var req refreshArchiveRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	result, err := s.ingestion.PopulateArchive(c.Request().Context(), limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, refreshArchiveResponse{
		Existing: result.Existing, Inserted: result.Inserted, Total: result.Total,
		Errors: result.Errors, Skipped: result.Skipped,
	})
}

// handleModels lists curated models, optionally filtered by category
// (§3 "seeded from a built-in default set").
func (s *Server) handleModels(c echo.Context) error {
	category := domain.ModelCategory(c.QueryParam("category"))
	models, err := s.store.CuratedModelsBy(c.Request().Context(), category)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]curatedModelResponse, len(models))
	for i, m := range models {
		out[i] = toCuratedModelResponse(m)
	}
	return c.JSON(http.StatusOK, out)
}

// handleRefreshModels reseeds the curated model catalog from the built-in
// default set (admin-gated). Existing rows keep their usage statistics; only
// name, provider, description, category and performance score are
// overwritten.
func (s *Server) handleRefreshModels(c echo.Context) error {
	if err := s.store.UpsertCuratedModels(c.Request().Context(), domain.DefaultCuratedModels()); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
