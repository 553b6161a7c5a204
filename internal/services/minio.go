package services

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/minio/minio-go/v7"

	"veyra_back_end/internal/database"
)

// ArchiveInvoice dépose le PDF de facture dans le bucket MinIO, sous
// invoices/<orderID>.pdf. Un dépôt pour le même orderID écrase le précédent.
func ArchiveInvoice(ctx context.Context, orderID string, pdf []byte) (string, error) {
	if database.MinIO == nil {
		return "", fmt.Errorf("MinIO non initialisé")
	}

	bucket := os.Getenv("MINIO_BUCKET")
	objectName := "invoices/" + orderID + ".pdf"

	_, err := database.MinIO.PutObject(ctx, bucket, objectName,
		bytes.NewReader(pdf), int64(len(pdf)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return "", err
	}

	return objectName, nil
}

// InvoiceDownloadURL génère une URL signée à durée limitée vers la facture
// archivée. Le bucket reste privé, seule l'URL signée donne accès.
func InvoiceDownloadURL(ctx context.Context, orderID string, duration time.Duration) (string, error) {
	if database.MinIO == nil {
		return "", fmt.Errorf("MinIO non initialisé")
	}

	reqParams := make(url.Values)
	presignedURL, err := database.MinIO.PresignedGetObject(
		ctx,
		os.Getenv("MINIO_BUCKET"),
		"invoices/"+orderID+".pdf",
		duration,
		reqParams,
	)
	if err != nil {
		return "", err
	}

	return presignedURL.String(), nil
}
