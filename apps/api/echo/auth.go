package echoapi

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/roster"
	"github.com/trezcool/sections/services/identity"
)

const (
	contextTokenKey = "userToken"
	contextActorKey = "actor"
)

// jwtMiddleware verifies the bearer token when one is sent. Requests without
// an Authorization header go through as anonymous.
func (s *Server) jwtMiddleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		Skipper: func(ctx echo.Context) bool {
			return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
		},
		SigningKey:    s.Issuer.SigningKey(),
		SigningMethod: identity.SigningMethod,
		ContextKey:    contextTokenKey,
		Claims:        new(identity.Claims),
	})
}

func getContextClaims(ctx echo.Context) (*identity.Claims, bool) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*identity.Claims); ok {
			return claims, true
		}
	}
	return nil, false
}

// actorMiddleware resolves the caller once per request: anonymous without a token, otherwise
// the course user behind the token, created on first login. Tokens issued for another
// course are rejected.
func (s *Server) actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, ok := getContextClaims(ctx)
		if !ok {
			ctx.Set(contextActorKey, access.AnonymousActor(s.Conf.Course))
			return next(ctx)
		}

		course := s.Conf.Course
		if claims.Course != "" && claims.Course != course {
			return errWrongCourse
		}
		var usr roster.User
		err := s.Store.Atomic(ctx.Request().Context(), func(tx roster.Tx) (err error) {
			usr, err = roster.SyncLogin(
				ctx.Request().Context(), tx, course,
				claims.Email, claims.Name,
				s.Directory.IsStaff(claims.Email), s.Directory.IsAdmin(claims.Email),
			)
			return err
		})
		if err != nil {
			return errors.Wrap(err, "syncing login")
		}
		ctx.Set(contextActorKey, access.NewActor(course, usr))
		return next(ctx)
	}
}

func getContextActor(ctx echo.Context) (access.Actor, error) {
	if actor, ok := ctx.Get(contextActorKey).(access.Actor); ok {
		return actor, nil
	}
	return access.Actor{}, errActorNotFoundInCtx
}

var errActorNotFoundInCtx = errors.New("actor not found in echo.Context")

// contextUser is the user to attach to logs, if any.
func contextUser(ctx echo.Context) roster.User {
	if actor, err := getContextActor(ctx); err == nil {
		return actor.User
	}
	if claims, ok := getContextClaims(ctx); ok {
		return roster.User{Email: claims.Email, Name: claims.Name}
	}
	return roster.User{}
}
