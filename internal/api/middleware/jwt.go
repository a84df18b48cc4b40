package middleware

import (
	"net/http"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ExtractOperatorIDFromJWT copies the "id" claim of a verified token into
// the request context. Requests without a usable claim pass through
// unchanged.
func ExtractOperatorIDFromJWT() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get("user").(*jwtv5.Token)
			if !ok || token == nil {
				return next(c)
			}

			claims, ok := token.Claims.(jwtv5.MapClaims)
			if !ok {
				return next(c)
			}

			idStr, ok := claims["id"].(string)
			if !ok {
				return next(c)
			}

			operatorID, err := uuid.Parse(idStr)
			if err != nil {
				return next(c)
			}

			ctx := ContextWithOperatorID(c.Request().Context(), operatorID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// RequireOperator answers 401 unless ExtractOperatorIDFromJWT found an
// operator id.
func RequireOperator() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := GetOperatorIDFromContext(c.Request().Context()); err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			return next(c)
		}
	}
}
