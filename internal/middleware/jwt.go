package middleware

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret = []byte(os.Getenv("JWT_SECRET"))

// AuthRequired exige un JWT valide émis par le service d'authentification et
// place user_id, email et role dans le contexte Gin.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token manquant ou invalide"})
			c.Abort()
			return
		}

		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user_id manquant"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("email", claims["email"])
		c.Set("role", claims["role"])
		c.Next()
	}
}

// OptionalAuth accepte les invités : si un JWT valide est présent, les claims
// sont posés dans le contexte, sinon la requête continue anonyme. Utilisé par
// le checkout, ouvert aux commandes invité.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseBearer(c); ok {
			if userID, ok := claims["user_id"].(string); ok && userID != "" {
				c.Set("user_id", userID)
				c.Set("email", claims["email"])
				c.Set("role", claims["role"])
			}
		}
		c.Next()
	}
}

func parseBearer(c *gin.Context) (jwt.MapClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("méthode de signature inattendue: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}

	if exp, ok := claims["exp"].(float64); ok {
		if time.Now().Unix() > int64(exp) {
			return nil, false
		}
	}
	return claims, true
}
