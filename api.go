package pagewatch

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/platforms"
	"github.com/pevans/pagewatch/strategy"
	"github.com/pevans/pagewatch/validate"
	"github.com/pevans/pagewatch/watches"
)

// APIServer exposes planning, analysis and watch management over HTTP.
type APIServer struct {
	engine *Engine
	store  *watches.WatchStore
}

// NewAPIServer creates a new API server.
func NewAPIServer(engine *Engine, store *watches.WatchStore) *APIServer {
	return &APIServer{
		engine: engine,
		store:  store,
	}
}

// SetupRouter configures the Gin router with all API routes.
func (s *APIServer) SetupRouter() *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	api.POST("/plan", s.HandlePlan)
	api.POST("/analyze", s.HandleAnalyze)

	api.GET("/platforms", s.HandleListPlatforms)
	api.GET("/platforms/:id", s.HandleGetPlatform)

	api.GET("/watches", s.HandleListWatches)
	api.GET("/watches/:id", s.HandleGetWatch)
	api.POST("/watches", s.HandleCreateWatch)
	api.PUT("/watches/:id", s.HandleUpdateWatch)
	api.DELETE("/watches/:id", s.HandleDeleteWatch)
	api.POST("/watches/:id/check", s.HandleCheckWatch)

	return router
}

// PlanRequest is the body of POST /api/v1/plan and POST /api/v1/analyze.
type PlanRequest struct {
	URL         string `json:"url" binding:"required"`
	Description string `json:"description"`
	Intent      string `json:"intent,omitempty"` // Overrides classification
}

// PlanResponse is the response of POST /api/v1/plan.
type PlanResponse struct {
	Plan     *Plan             `json:"plan"`
	Strategy strategy.Strategy `json:"strategy"`
}

// PlatformSummary is one entry of GET /api/v1/platforms.
type PlatformSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
}

// ListPlatformsResponse represents the response for GET /api/v1/platforms.
type ListPlatformsResponse struct {
	Platforms []PlatformSummary `json:"platforms"`
	Total     int               `json:"total"`
}

// ListWatchesResponse represents the response for GET /api/v1/watches.
type ListWatchesResponse struct {
	Watches []watches.Watch `json:"watches"`
	Total   int             `json:"total"`
}

// CreateWatchRequest represents the request for POST /api/v1/watches. When
// engine and extraction are omitted the plan's strategy is used.
type CreateWatchRequest struct {
	URL         string  `json:"url" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Intent      string  `json:"intent,omitempty"`
	Engine      string  `json:"engine,omitempty"`
	Extraction  string  `json:"extraction,omitempty"`
	Interval    *string `json:"interval,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"` // Default: true
}

// UpdateWatchRequest represents the request for PUT /api/v1/watches/{id}.
type UpdateWatchRequest struct {
	Description *string `json:"description,omitempty"`
	Engine      *string `json:"engine,omitempty"`
	Extraction  *string `json:"extraction,omitempty"`
	Interval    *string `json:"interval,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// handleError maps domain errors to HTTP responses.
func (s *APIServer) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, watches.ErrWatchNotFound), errors.Is(err, platforms.ErrPlatformNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	case errors.Is(err, watches.ErrDuplicateWatch):
		c.JSON(http.StatusConflict, errorResponse("conflict", err.Error()))
	case errors.Is(err, ErrInvalidURL),
		errors.Is(err, watches.ErrInvalidInterval),
		errors.Is(err, watches.ErrInvalidIntent),
		errors.Is(err, strategy.ErrUnknownEngine),
		errors.Is(err, strategy.ErrEmptyCommand),
		errors.Is(err, strategy.ErrInvalidSelector),
		errors.Is(err, strategy.ErrEmptyMetaTags):
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
	case errors.Is(err, ErrNoFetcher):
		c.JSON(http.StatusServiceUnavailable, errorResponse("unavailable", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// plan builds a plan from a request, honoring an explicit intent.
func (s *APIServer) plan(rawURL, description, explicit string) (*Plan, error) {
	if explicit == "" {
		return s.engine.Plan(rawURL, description)
	}
	in, err := intent.Parse(explicit)
	if err != nil {
		return nil, errors.Join(watches.ErrInvalidIntent, err)
	}
	return s.engine.PlanIntent(rawURL, in)
}

// HandlePlan handles POST /api/v1/plan.
func (s *APIServer) HandlePlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	p, err := s.plan(req.URL, req.Description, req.Intent)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, PlanResponse{Plan: p, Strategy: p.Strategy()})
}

// HandleAnalyze handles POST /api/v1/analyze. The page is fetched, so this
// may take as long as the configured fetch timeout.
func (s *APIServer) HandleAnalyze(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	p, err := s.plan(req.URL, req.Description, req.Intent)
	if err != nil {
		s.handleError(c, err)
		return
	}

	analysis, err := s.engine.PreviewPlan(c.Request.Context(), p)
	if err != nil {
		if errors.Is(err, ErrNoFetcher) {
			s.handleError(c, err)
			return
		}
		c.JSON(http.StatusBadGateway, errorResponse("fetch_failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// HandleListPlatforms handles GET /api/v1/platforms.
func (s *APIServer) HandleListPlatforms(c *gin.Context) {
	kb := s.engine.KnowledgeBase()

	summaries := make([]PlatformSummary, 0, kb.Len())
	for _, id := range kb.IDs() {
		def, _ := kb.Get(id)
		summaries = append(summaries, PlatformSummary{
			ID:      def.ID,
			Name:    def.Name,
			Aliases: def.Aliases,
		})
	}

	c.JSON(http.StatusOK, ListPlatformsResponse{
		Platforms: summaries,
		Total:     len(summaries),
	})
}

// HandleGetPlatform handles GET /api/v1/platforms/{id}. Aliases resolve to
// their platform.
func (s *APIServer) HandleGetPlatform(c *gin.Context) {
	def, ok := s.engine.KnowledgeBase().Get(c.Param("id"))
	if !ok {
		s.handleError(c, platforms.ErrPlatformNotFound)
		return
	}

	c.JSON(http.StatusOK, def)
}

// HandleListWatches handles GET /api/v1/watches.
func (s *APIServer) HandleListWatches(c *gin.Context) {
	filter := watches.WatchFilter{}

	if intentParam := c.Query("intent"); intentParam != "" {
		in, err := intent.Parse(intentParam)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
			return
		}
		filter.Intent = &in
	}

	if enabledParam := c.Query("enabled"); enabledParam != "" {
		enabled := enabledParam == "true"
		filter.Enabled = &enabled
	}

	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if raw := c.Query(name); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, errorResponse("validation_error", "invalid "+name))
				return
			}
			*dst = n
		}
	}

	list, err := s.store.ListWatches(filter)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if list == nil {
		list = []watches.Watch{}
	}

	c.JSON(http.StatusOK, ListWatchesResponse{
		Watches: list,
		Total:   len(list),
	})
}

// HandleGetWatch handles GET /api/v1/watches/{id}.
func (s *APIServer) HandleGetWatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid watch ID"))
		return
	}

	watch, err := s.store.GetWatch(id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, watch)
}

// HandleCreateWatch handles POST /api/v1/watches.
func (s *APIServer) HandleCreateWatch(c *gin.Context) {
	var req CreateWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("validation_error", err.Error()))
		return
	}

	p, err := s.plan(req.URL, req.Description, req.Intent)
	if err != nil {
		s.handleError(c, err)
		return
	}

	st, err := overrideStrategy(p.Strategy(), req.Engine, req.Extraction)
	if err != nil {
		s.handleError(c, err)
		return
	}

	var enabledAt *time.Time
	if req.Enabled == nil || *req.Enabled {
		now := time.Now()
		enabledAt = &now
	}

	nw := watches.NewWatch{
		URL:         p.URL,
		Description: req.Description,
		Intent:      p.Intent,
		Strategy:    st,
		Interval:    req.Interval,
		EnabledAt:   enabledAt,
	}

	watch, err := s.store.CreateWatch(nw)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, watch)
}

// HandleUpdateWatch handles PUT /api/v1/watches/{id}.
func (s *APIServer) HandleUpdateWatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid watch ID"))
		return
	}

	var req UpdateWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", err.Error()))
		return
	}

	update := watches.WatchUpdate{
		Description: req.Description,
		Interval:    req.Interval,
	}

	if req.Engine != nil || req.Extraction != nil {
		current, err := s.store.GetWatch(id)
		if err != nil {
			s.handleError(c, err)
			return
		}
		base, err := current.Strategy()
		if err != nil {
			s.handleError(c, err)
			return
		}
		st, err := overrideStrategy(base, deref(req.Engine), deref(req.Extraction))
		if err != nil {
			s.handleError(c, err)
			return
		}
		update.Strategy = &st
	}

	if req.Enabled != nil {
		if *req.Enabled {
			now := time.Now()
			update.EnabledAt = &now
		} else {
			update.ClearEnabledAt = true
		}
	}

	if err := s.store.UpdateWatch(id, update); err != nil {
		s.handleError(c, err)
		return
	}

	watch, err := s.store.GetWatch(id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, watch)
}

// HandleDeleteWatch handles DELETE /api/v1/watches/{id}.
func (s *APIServer) HandleDeleteWatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid watch ID"))
		return
	}

	if err := s.store.DeleteWatch(id); err != nil {
		s.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CheckWatchResponse is the body of POST /api/v1/watches/{id}/check.
type CheckWatchResponse struct {
	Watch  *watches.Watch  `json:"watch"`
	Result validate.Result `json:"result"`
}

// HandleCheckWatch handles POST /api/v1/watches/{id}/check. The watch is
// fetched with its saved strategy and the outcome is recorded on it.
func (s *APIServer) HandleCheckWatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("bad_request", "Invalid watch ID"))
		return
	}

	watch, err := s.store.GetWatch(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	st, err := watch.Strategy()
	if err != nil {
		s.handleError(c, err)
		return
	}

	res, checkErr := s.engine.Check(c.Request.Context(), watch.URL, watch.Intent, st)
	if errors.Is(checkErr, ErrNoFetcher) {
		s.handleError(c, checkErr)
		return
	}

	now := time.Now()
	lastError := ""
	switch {
	case checkErr != nil:
		lastError = checkErr.Error()
	case !res.Success:
		lastError = res.Error
	}
	if err := s.store.UpdateWatch(id, watches.WatchUpdate{LastCheckedAt: &now, LastError: &lastError}); err != nil {
		s.handleError(c, err)
		return
	}

	if checkErr != nil {
		c.JSON(http.StatusBadGateway, errorResponse("fetch_failed", checkErr.Error()))
		return
	}

	watch, err = s.store.GetWatch(id)
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, CheckWatchResponse{Watch: watch, Result: res})
}

// overrideStrategy replaces the engine and extraction of base with the
// parsed values of any non-empty strings.
func overrideStrategy(base strategy.Strategy, engine, extraction string) (strategy.Strategy, error) {
	if engine != "" {
		e, err := strategy.ParseEngine(engine)
		if err != nil {
			return base, err
		}
		base.Engine = e
	}
	if extraction != "" {
		x, err := strategy.ParseExtraction(extraction)
		if err != nil {
			return base, err
		}
		base.Extraction = x
	}
	return base, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
