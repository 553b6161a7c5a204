package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"veyra_back_end/internal/database"
	"veyra_back_end/internal/models"
)

//
// --- INDEXATION DANS ELASTICSEARCH ---
//

// Indexe une commande dans Elasticsearch pour la recherche admin
func IndexOrder(o models.Order) {
	if database.Elastic == nil {
		log.Println("⚠️ Elastic non initialisé, impossible d'indexer la commande:", o.ID)
		return
	}

	data, _ := json.Marshal(o)
	req := esapi.IndexRequest{
		Index:      "orders",
		DocumentID: o.ID.String(),
		Body:       bytes.NewReader(data),
		Refresh:    "true", // rend la donnée immédiatement visible
	}

	res, err := req.Do(context.Background(), database.Elastic)
	if err != nil {
		log.Println("❌ Erreur envoi Elastic:", err)
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Printf("⚠️ Elastic a renvoyé une erreur pour la commande %s: %s", o.ID, res.String())
	} else {
		log.Printf("✅ Commande indexée dans Elasticsearch: %s", o.ID)
	}
}

//
// --- RECHERCHE DANS ELASTICSEARCH ---
//

// Recherche des commandes par email client, statut, code promo ou nom d'article
func SearchOrders(query string) ([]map[string]interface{}, error) {
	if database.Elastic == nil {
		return nil, errors.New("client Elasticsearch non initialisé")
	}

	var buf bytes.Buffer
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"customer_email", "status", "voucher_code", "items.name", "transaction_id"},
			},
		},
	}

	if err := json.NewEncoder(&buf).Encode(q); err != nil {
		return nil, fmt.Errorf("erreur encodage requête: %v", err)
	}

	req := esapi.SearchRequest{
		Index: []string{"orders"},
		Body:  &buf,
	}
	res, err := req.Do(context.Background(), database.Elastic)
	if err != nil {
		return nil, fmt.Errorf("erreur requête Elastic: %v", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		var e map[string]interface{}
		json.NewDecoder(res.Body).Decode(&e)
		log.Printf("❌ Elasticsearch erreur: %+v", e)
		return nil, errors.New("index non trouvé ou vide")
	}

	var r map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("erreur décodage JSON: %v", err)
	}

	hitsData, ok := r["hits"].(map[string]interface{})
	if !ok {
		return nil, errors.New("réponse Elastic invalide (pas de hits)")
	}

	hitsArray, ok := hitsData["hits"].([]interface{})
	if !ok {
		return nil, errors.New("aucun résultat trouvé")
	}

	results := make([]map[string]interface{}, 0, len(hitsArray))
	for _, hit := range hitsArray {
		hitMap, _ := hit.(map[string]interface{})
		if source, ok := hitMap["_source"].(map[string]interface{}); ok {
			results = append(results, source)
		}
	}

	return results, nil
}
