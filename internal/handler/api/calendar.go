package api

import (
	"io"

	models "MacroGate/internal/domain/models"
	"MacroGate/internal/services/execution"
	"MacroGate/internal/usecase"
	xhttp "MacroGate/pkg/http"
	applogger "MacroGate/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MaxCalendarUpload caps CSV uploads.
const MaxCalendarUpload = 1 << 20

// CalendarHandler manages the event calendar and its presets.
type CalendarHandler struct {
	logger   *applogger.Logger
	calendar *usecase.CalendarUseCase
}

func NewCalendarHandler(logger *applogger.Logger, calendar *usecase.CalendarUseCase) *CalendarHandler {
	return &CalendarHandler{
		logger:   logger.Component("calendar_api"),
		calendar: calendar,
	}
}

func (h *CalendarHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/calendar")
	g.GET("", h.List)
	g.POST("", h.Replace)
	g.DELETE("", h.Clear)
	g.POST("/csv", h.ImportCSV)
	g.POST("/manual", h.AddManual)

	p := e.Group("/api/presets")
	p.GET("", h.ListPresets)
	p.POST("/:name", h.SavePreset)
	p.POST("/:name/load", h.LoadPreset)
	p.POST("/:name/rename", h.RenamePreset)
	p.DELETE("/:name", h.DeletePreset)
}

type importView struct {
	execution.ParseReport
	Events int `json:"events"`
}

type countView struct {
	Name   string `json:"name,omitempty"`
	Events int    `json:"events"`
}

func (h *CalendarHandler) List(c echo.Context) error {
	events, err := h.calendar.List(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, events, int64(len(events)))
}

func (h *CalendarHandler) Replace(c echo.Context) error {
	req := &models.CalendarReplaceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	n, err := h.calendar.Replace(c.Request().Context(), req.Events)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, countView{Events: n})
}

func (h *CalendarHandler) Clear(c echo.Context) error {
	h.calendar.Clear(c.Request().Context())
	return xhttp.NoContentResponse(c)
}

// ImportCSV reads the raw request body as a calendar export.
func (h *CalendarHandler) ImportCSV(c echo.Context) error {
	body := io.LimitReader(c.Request().Body, MaxCalendarUpload)
	rep, err := h.calendar.ImportCSV(c.Request().Context(), body)
	if err != nil {
		h.logger.Warn("calendar csv rejected", applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, importView{ParseReport: rep, Events: rep.Accepted})
}

func (h *CalendarHandler) AddManual(c echo.Context) error {
	req := &models.ManualEventsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rep := h.calendar.AddManual(c.Request().Context(), req.Lines)
	return xhttp.SuccessResponse(c, importView{ParseReport: rep, Events: rep.Accepted})
}

func (h *CalendarHandler) ListPresets(c echo.Context) error {
	names, err := h.calendar.ListPresets(c.Request().Context())
	if err != nil {
		h.logger.Error("list presets", applogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, names, int64(len(names)))
}

func (h *CalendarHandler) SavePreset(c echo.Context) error {
	req := &models.PresetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	n, err := h.calendar.SavePreset(c.Request().Context(), req.Name)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.CreatedResponse(c, countView{Name: req.Name, Events: n})
}

func (h *CalendarHandler) LoadPreset(c echo.Context) error {
	req := &models.PresetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	n, err := h.calendar.LoadPreset(c.Request().Context(), req.Name)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, countView{Name: req.Name, Events: n})
}

func (h *CalendarHandler) RenamePreset(c echo.Context) error {
	req := &models.PresetRenameRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.calendar.RenamePreset(c.Request().Context(), req.Name, req.To); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, countView{Name: req.To})
}

func (h *CalendarHandler) DeletePreset(c echo.Context) error {
	req := &models.PresetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.calendar.DeletePreset(c.Request().Context(), req.Name); err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.NoContentResponse(c)
}
