package admin

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"veyra_back_end/internal/database"
	"veyra_back_end/internal/models"
)

// GetAuditLogs récupère les logs d'audit avec filtres
func GetAuditLogs(c *gin.Context) {
	ordersSession, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	// Paramètres de filtrage
	userID := c.Query("user_id")
	action := c.Query("action")
	resource := c.Query("resource")
	limitStr := c.DefaultQuery("limit", "100")

	limit, _ := strconv.Atoi(limitStr)
	if limit > 500 || limit <= 0 {
		limit = 500
	}

	baseQuery := `SELECT id, user_id, user_email, action, resource, resource_id,
				  old_value, new_value, ip_address, user_agent, success,
				  error_msg, timestamp FROM audit_logs`

	conditions := []string{}
	var args []interface{}

	if userID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, userID)
	}
	if action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, action)
	}
	if resource != "" {
		conditions = append(conditions, "resource = ?")
		args = append(args, resource)
	}

	query := baseQuery
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			query += " AND " + conditions[i]
		}
	}
	query += " LIMIT ? ALLOW FILTERING"
	args = append(args, limit)

	iter := ordersSession.Query(query, args...).Iter()

	var logs []models.AuditLog
	var auditLog models.AuditLog

	for iter.Scan(&auditLog.ID, &auditLog.UserID, &auditLog.UserEmail,
		&auditLog.Action, &auditLog.Resource, &auditLog.ResourceID,
		&auditLog.OldValue, &auditLog.NewValue, &auditLog.IPAddress,
		&auditLog.UserAgent, &auditLog.Success, &auditLog.ErrorMsg,
		&auditLog.Timestamp) {
		logs = append(logs, auditLog)
	}

	if err := iter.Close(); err != nil {
		log.Printf("❌ Erreur récupération logs audit: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": len(logs),
		"filters": gin.H{
			"user_id":  userID,
			"action":   action,
			"resource": resource,
			"limit":    limit,
		},
	})
}

// GetAuditLogsByResource récupère les logs pour une ressource spécifique
func GetAuditLogsByResource(c *gin.Context) {
	resource := c.Param("resource")
	resourceID := c.Param("resource_id")
	limitStr := c.DefaultQuery("limit", "50")

	limit, _ := strconv.Atoi(limitStr)
	if limit > 200 || limit <= 0 {
		limit = 200
	}

	ordersSession, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	query := `SELECT id, user_id, user_email, action, resource, resource_id,
			  old_value, new_value, ip_address, user_agent, success,
			  error_msg, timestamp FROM audit_logs
			  WHERE resource = ? AND resource_id = ? LIMIT ? ALLOW FILTERING`

	iter := ordersSession.Query(query, resource, resourceID, limit).Iter()

	var logs []models.AuditLog
	var auditLog models.AuditLog

	for iter.Scan(&auditLog.ID, &auditLog.UserID, &auditLog.UserEmail,
		&auditLog.Action, &auditLog.Resource, &auditLog.ResourceID,
		&auditLog.OldValue, &auditLog.NewValue, &auditLog.IPAddress,
		&auditLog.UserAgent, &auditLog.Success, &auditLog.ErrorMsg,
		&auditLog.Timestamp) {
		logs = append(logs, auditLog)
	}

	if err := iter.Close(); err != nil {
		log.Printf("❌ Erreur récupération logs audit: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resource":    resource,
		"resource_id": resourceID,
		"logs":        logs,
		"total":       len(logs),
	})
}
