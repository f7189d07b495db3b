package http

import (
	"github.com/labstack/echo/v4"

	xutil "PawnPrice/pkg/util"
)

// QueryInt reads an integer query param, falling back to def and clamping
// to [min, max].
func QueryInt(c echo.Context, name string, def, min, max int) int {
	v := xutil.ParseIntDefault(c.QueryParam(name), def)
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
