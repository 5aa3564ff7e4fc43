package middleware // reusable HTTP middleware for the admission API

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the token's subject into the request context as
// the holder id.  Reservations are always made on behalf of the
// authenticated subject; handlers read it via HolderID.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }
            sub, _ := claims["sub"].(string)
            if sub == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has no subject"})
            }
            c.Set("holder_id", sub)
            return next(c)
        }
    }
}

// HolderID extracts the authenticated holder id placed in the context
// by JWTAuth.  It returns "" when the request is unauthenticated.
func HolderID(c echo.Context) string {
    if v, ok := c.Get("holder_id").(string); ok {
        return v
    }
    return ""
}
