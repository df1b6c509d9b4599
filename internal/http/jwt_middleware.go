package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"online-ide/internal/service"
)

const authClaimsKey = "auth_claims"

// JWTAuthMiddleware exige un bearer token valido y guarda los claims en el
// contexto. Sin token responde 403; un token invalido o vencido responde
// invalidStatus.
func JWTAuthMiddleware(jwtSvc *service.JWTService, invalidStatus int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "Server configuration error."})
			return
		}

		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": "No token provided"})
			return
		}

		claims, err := jwtSvc.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(invalidStatus, gin.H{"msg": service.ErrUnauthorized.Msg})
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// OptionalJWTMiddleware guarda los claims si llega un token; sin token deja
// pasar la request.
func OptionalJWTMiddleware(jwtSvc *service.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" || jwtSvc == nil {
			c.Next()
			return
		}
		claims, err := jwtSvc.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"msg": service.ErrUnauthorized.Msg})
			return
		}
		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

// sessionUserID devuelve el usuario de la sesion, o "" si no hay.
func sessionUserID(c *gin.Context) string {
	claims, ok := GetAuthClaims(c)
	if !ok {
		return ""
	}
	return claims.UserID
}
