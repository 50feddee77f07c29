package api

import (
	"time"

	models "MacroGate/internal/domain/models"
	domrepo "MacroGate/internal/domain/repository"
	"MacroGate/internal/usecase"
	xhttp "MacroGate/pkg/http"
	applogger "MacroGate/pkg/logger"
	"MacroGate/pkg/util"

	"github.com/labstack/echo/v4"
)

// ExecutionHandler serves evaluations and the audit trail.
type ExecutionHandler struct {
	logger    *applogger.Logger
	evaluator *usecase.Evaluator
	recorder  *usecase.SnapshotRecorder
	audit     domrepo.AuditReader
	narrative models.Narrative
	clock     domrepo.Clock
}

func NewExecutionHandler(
	logger *applogger.Logger,
	evaluator *usecase.Evaluator,
	recorder *usecase.SnapshotRecorder,
	audit domrepo.AuditReader,
	narrative models.Narrative,
	clock domrepo.Clock,
) *ExecutionHandler {
	if clock == nil {
		clock = domrepo.SystemClock{}
	}
	return &ExecutionHandler{
		logger:    logger.Component("execution_api"),
		evaluator: evaluator,
		recorder:  recorder,
		audit:     audit,
		narrative: narrative,
		clock:     clock,
	}
}

func (h *ExecutionHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/evaluation", h.Evaluation)
	g.GET("/verdict", h.Verdict)
	g.GET("/bias", h.Bias)
	g.GET("/regimes", h.Regimes)
	g.GET("/session", h.Session)

	g.GET("/audit", h.AuditList)
	g.GET("/audit/export", h.AuditExport)
	g.POST("/audit/snapshot", h.AuditSnapshot)
	g.DELETE("/audit", h.AuditClear)
}

type verdictView struct {
	Instrument   string                     `json:"instrument"`
	Timestamp    time.Time                  `json:"timestamp"`
	SessionPhase models.SessionPhase        `json:"session_phase"`
	Verdict      models.ExecutionVerdict    `json:"verdict"`
	Fakeout      models.RiskLevel           `json:"fakeout"`
	Event        models.EventRiskAssessment `json:"event"`
	DataQuality  models.DataQuality         `json:"data_quality"`
}

type regimesView struct {
	Timestamp   time.Time             `json:"timestamp"`
	Regimes     models.DriverRegimes  `json:"regimes"`
	States      []models.RegimeState  `json:"states"`
	Metrics     []models.MarketMetric `json:"metrics"`
	DataQuality models.DataQuality    `json:"data_quality"`
	QualityNote string                `json:"quality_note"`
}

type sessionView struct {
	Phase    models.SessionPhase `json:"phase"`
	Time     string              `json:"time"`
	Timezone string              `json:"timezone"`
}

func (h *ExecutionHandler) Evaluation(c echo.Context) error {
	ev, ok, err := h.evaluate(c)
	if !ok {
		return err
	}
	return xhttp.SuccessResponse(c, ev)
}

func (h *ExecutionHandler) Verdict(c echo.Context) error {
	ev, ok, err := h.evaluate(c)
	if !ok {
		return err
	}
	return xhttp.SuccessResponse(c, verdictView{
		Instrument:   ev.Instrument,
		Timestamp:    ev.Timestamp,
		SessionPhase: ev.SessionPhase,
		Verdict:      ev.Verdict,
		Fakeout:      ev.Fakeout,
		Event:        ev.Event,
		DataQuality:  ev.DataQuality,
	})
}

func (h *ExecutionHandler) Bias(c echo.Context) error {
	ev, ok, err := h.evaluate(c)
	if !ok {
		return err
	}
	return xhttp.SuccessResponse(c, ev.Bias)
}

func (h *ExecutionHandler) Regimes(c echo.Context) error {
	ev, ok, err := h.evaluate(c)
	if !ok {
		return err
	}
	return xhttp.SuccessResponse(c, regimesView{
		Timestamp:   ev.Timestamp,
		Regimes:     ev.Regimes,
		States:      ev.States,
		Metrics:     ev.Metrics,
		DataQuality: ev.DataQuality,
		QualityNote: ev.QualityNote,
	})
}

func (h *ExecutionHandler) Session(c echo.Context) error {
	engine := h.evaluator.Engine()
	now := h.clock.Now().In(engine.Location())
	return xhttp.SuccessResponse(c, sessionView{
		Phase:    engine.SessionPhase(now),
		Time:     now.Format(models.SnapshotTimeLayout),
		Timezone: engine.Location().String(),
	})
}

// evaluate reads an EvaluationRequest and runs it. When ok is false the
// error response has already been written and err is its write result.
func (h *ExecutionHandler) evaluate(c echo.Context) (ev models.Evaluation, ok bool, err error) {
	req := &models.EvaluationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return ev, false, xhttp.BadRequestResponse(c, verr)
	}
	var at time.Time
	if req.At != "" {
		t, parsed := util.ParseTimeIn(req.At, h.evaluator.Engine().Location())
		if !parsed {
			return ev, false, xhttp.AppErrorResponse(c, xhttp.BadRequestError("at", "unrecognized time format"))
		}
		at = t
	}

	ev, err = h.evaluator.Evaluate(c.Request().Context(), usecase.EvaluateParams{
		Instrument: req.Instrument,
		Narrative:  req.Narrative(),
		At:         at,
	})
	if err != nil {
		h.logger.Error("evaluation usecase error", applogger.String("instrument", req.Instrument), applogger.Error(err))
		return ev, false, xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return ev, true, nil
}

func (h *ExecutionHandler) AuditList(c echo.Context) error {
	req := &models.AuditListRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.ListResponse(c, h.audit.Recent(req.Limit), int64(h.audit.Len()))
}

func (h *ExecutionHandler) AuditExport(c echo.Context) error {
	name := "execution_audit_" + h.clock.Now().UTC().Format("20060102_1504") + ".csv"
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	res.WriteHeader(200)
	if err := h.audit.ExportCSV(res); err != nil {
		h.logger.Error("audit export failed", applogger.Error(err))
		return err
	}
	return nil
}

func (h *ExecutionHandler) AuditSnapshot(c echo.Context) error {
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()
	ev, err := h.evaluator.Evaluate(ctx, usecase.EvaluateParams{Instrument: req.Instrument, Narrative: h.narrative})
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	rec, err := h.recorder.Force(ctx, ev)
	if err != nil {
		// Rows reached at least the backends that did not fail.
		h.logger.Warn("snapshot partially recorded", applogger.Error(err))
	}
	return xhttp.CreatedResponse(c, rec)
}

func (h *ExecutionHandler) AuditClear(c echo.Context) error {
	h.audit.Clear()
	return xhttp.NoContentResponse(c)
}
