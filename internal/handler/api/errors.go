package api

import (
	"errors"

	"PawnPrice/internal/services/pricing"
	"PawnPrice/internal/services/vision"
	"PawnPrice/internal/usecase"
	xhttp "PawnPrice/pkg/http"
)

// toAppError maps domain errors onto HTTP errors. Unknown errors become 500s.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, pricing.ErrInvalidFMV):
		return xhttp.BadRequestError("fmv", "fmv must be greater than zero").WithError(err)
	case errors.Is(err, usecase.ErrItemUnidentified):
		return xhttp.BadRequestError("brand", "brand and model are required when no images are sent").WithError(err)
	case errors.Is(err, vision.ErrNoImages):
		return xhttp.BadRequestError("images", "at least one image is required").WithError(err)
	case errors.Is(err, usecase.ErrNoMarketData):
		return xhttp.NotFoundErrorf("no marketplace data found for this item").WithError(err)
	case errors.Is(err, usecase.ErrIdentifierUnavailable), errors.Is(err, vision.ErrNotConfigured):
		return xhttp.UnavailableError("item identification is not available").WithError(err)
	case errors.Is(err, usecase.ErrFraudDisabled):
		return xhttp.UnavailableError("fraud detection is disabled").WithError(err)
	case errors.Is(err, usecase.ErrOptimizerRunning):
		return xhttp.ConflictError("optimizer run already in progress").WithError(err)
	}
	return xhttp.InternalErrorf("internal error").WithError(err)
}
