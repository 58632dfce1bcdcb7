package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client.
// Prefers ADC (service account / GOOGLE_APPLICATION_CREDENTIALS); explicit
// JSON can be supplied via GCS_CREDENTIALS_JSON for local runs.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// SaveDocumentToGCS uploads a rendered invoice document under objectName.
func SaveDocumentToGCS(ctx context.Context, objectName string, contentType string, data []byte) error {
	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return errors.New("GCS_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		return err
	}
	if err := wc.Close(); err != nil {
		return err
	}
	return nil
}

type serviceAccountJSON struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// GetSignedDocumentURL returns a V4 signed GET URL for a stored document.
// Signing material comes from GCS_CREDENTIALS_JSON.
func GetSignedDocumentURL(objectName string, expires time.Duration) (string, error) {
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}

	credJSON := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON"))
	if credJSON == "" {
		return "", errors.New("GCS_CREDENTIALS_JSON is required for signed URLs")
	}
	var sa serviceAccountJSON
	if err := json.Unmarshal([]byte(credJSON), &sa); err != nil {
		return "", fmt.Errorf("invalid GCS_CREDENTIALS_JSON: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return "", errors.New("GCS_CREDENTIALS_JSON missing client_email or private_key")
	}

	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         "GET",
		Expires:        time.Now().Add(expires),
		GoogleAccessID: sa.ClientEmail,
		PrivateKey:     []byte(sa.PrivateKey),
	}
	return storage.SignedURL(bucket, objectName, opts)
}
