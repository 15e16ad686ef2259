package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/sections/core/access"
)

// guard fails before binding, so callers below the operation's role learn nothing about its payload.
func guard(op access.Operation) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextActor(ctx)
			if err != nil {
				return errUnauthorized
			}
			if err = access.Check(actor, op); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}
