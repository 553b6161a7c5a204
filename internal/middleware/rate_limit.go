package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"veyra_back_end/internal/database"
)

const (
	// Limites par endpoint
	CheckoutMaxAttempts = 10  // par minute et par client
	APIMaxRequests      = 100 // Par minute pour les endpoints généraux
	SearchMaxRequests   = 30

	APICooldown = 1 * time.Minute
)

// CheckoutRateLimit limite les créations de commande par client (anti-abus :
// chaque tentative réserve du stock et potentiellement un code promo)
func CheckoutRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()

		// client connecté ou invité par IP
		who := c.GetString("user_id")
		if who == "" {
			who = c.ClientIP()
		}
		key := "checkout_attempts:" + who

		attempts, _ := database.Redis.Get(ctx, key).Int()
		if attempts >= CheckoutMaxAttempts {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Trop de commandes en peu de temps. Réessayez dans 1 minute",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		pipe := database.Redis.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, APICooldown)
		pipe.Exec(ctx)

		c.Next()
	}
}

// APIRateLimit limite le nombre de requêtes par IP (général)
func APIRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		ip := c.ClientIP()
		key := "api_requests:" + ip

		// Vérifier le nombre de requêtes dans la dernière minute
		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= APIMaxRequests {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Trop de requêtes. Réessayez dans 1 minute",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		// Incrémenter le compteur
		pipe := database.Redis.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, APICooldown)
		pipe.Exec(ctx)

		// Ajouter les headers de rate limit
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", APIMaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", APIMaxRequests-requests-1))

		c.Next()
	}
}

// SearchRateLimit limite les recherches admin (anti-spam)
func SearchRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		ctx := context.Background()
		key := "search_requests:" + ip

		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= SearchMaxRequests {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Trop de recherches. Réessayez dans 1 minute",
				"retry_after": 60,
			})
			c.Abort()
			return
		}

		pipe := database.Redis.Pipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, 1*time.Minute)
		pipe.Exec(ctx)

		c.Next()
	}
}
