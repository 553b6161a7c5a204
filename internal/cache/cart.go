package cache

import (
	"context"
	"encoding/json"
	"time"

	"veyra_back_end/internal/database"
	"veyra_back_end/internal/models"
)

const CartTTL = 7 * 24 * time.Hour

// GetCart récupère le panier Redis d'un client
func GetCart(userID string) ([]models.CartItem, error) {
	ctx := context.Background()

	data, err := database.Redis.Get(ctx, "cart:"+userID).Result()
	if err != nil {
		return nil, err
	}

	var items []models.CartItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveCart remplace le panier d'un client
func SaveCart(userID string, items []models.CartItem) error {
	ctx := context.Background()

	jsonData, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return database.Redis.Set(ctx, "cart:"+userID, jsonData, CartTTL).Err()
}

// ClearCart vide le panier, appelé après une commande aboutie
func ClearCart(userID string) error {
	ctx := context.Background()
	return database.Redis.Del(ctx, "cart:"+userID).Err()
}
