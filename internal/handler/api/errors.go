package api

import (
	"errors"

	domrepo "MacroGate/internal/domain/repository"
	"MacroGate/internal/service/marketdata"
	"MacroGate/internal/services/execution"
	"MacroGate/internal/usecase"
	xhttp "MacroGate/pkg/http"
)

// toAppError maps domain errors onto HTTP errors. Unknown errors pass
// through and become a 500.
func toAppError(err error) error {
	switch {
	case errors.Is(err, usecase.ErrUnknownInstrument):
		return xhttp.NotFoundErrorf("instrument not configured").WithError(err)
	case errors.Is(err, domrepo.ErrPresetNotFound):
		return xhttp.NotFoundErrorf("preset not found").WithError(err)
	case errors.Is(err, domrepo.ErrPresetExists):
		return xhttp.ConflictErrorf("preset already exists").WithError(err)
	case errors.Is(err, usecase.ErrInvalidEvent):
		return xhttp.BadRequestError("events", err.Error()).WithError(err)
	case errors.Is(err, execution.ErrNoTitleColumn), errors.Is(err, execution.ErrNoTimeColumn):
		return xhttp.BadRequestError("csv", err.Error()).WithError(err)
	case errors.Is(err, marketdata.ErrCircuitOpen):
		return xhttp.UnavailableError("market data temporarily unavailable").WithError(err)
	}
	return err
}
