package cache

import (
	"context"
	"encoding/json"
	"time"

	"veyra_back_end/internal/database"
	"veyra_back_end/internal/models"
)

const (
	VariantCacheTTL = 10 * time.Minute
	StatsCacheTTL   = 1 * time.Minute
)

// GetVariantFromCache récupère une variante depuis Redis ou ScyllaDB
func GetVariantFromCache(sku string) (*models.ProductVariant, error) {
	ctx := context.Background()
	key := "variant:" + sku

	// 1. Essayer le cache Redis
	data, err := database.Redis.Get(ctx, key).Result()
	if err == nil {
		var v models.ProductVariant
		if json.Unmarshal([]byte(data), &v) == nil {
			return &v, nil
		}
	}

	// 2. Récupérer de ScyllaDB
	session, err := database.GetProductsSession()
	if err != nil {
		return nil, err
	}

	var v models.ProductVariant
	err = session.Query(`SELECT id, product_id, sku, name, price, attributes, is_active, created_at, updated_at
		FROM product_variants WHERE sku = ?`, sku).Scan(
		&v.ID, &v.ProductID, &v.SKU, &v.Name, &v.Price, &v.Attributes, &v.IsActive, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	// 3. Mettre en cache
	jsonData, _ := json.Marshal(v)
	database.Redis.Set(ctx, key, jsonData, VariantCacheTTL)

	return &v, nil
}

// InvalidateVariantCache invalide le cache d'une variante
func InvalidateVariantCache(sku string) {
	ctx := context.Background()
	database.Redis.Del(ctx, "variant:"+sku)
}

// GetStatsFromCache récupère les stats du tableau de bord si encore fraîches
func GetStatsFromCache() (map[string]interface{}, bool) {
	ctx := context.Background()
	data, err := database.Redis.Get(ctx, "dashboard:stats").Result()
	if err != nil {
		return nil, false
	}
	var stats map[string]interface{}
	if json.Unmarshal([]byte(data), &stats) != nil {
		return nil, false
	}
	return stats, true
}

// SetStatsCache garde les stats du tableau de bord pour une minute
func SetStatsCache(stats map[string]interface{}) {
	ctx := context.Background()
	jsonData, _ := json.Marshal(stats)
	database.Redis.Set(ctx, "dashboard:stats", jsonData, StatsCacheTTL)
}
