package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// Client wraps a GCS bucket used for call artifacts (metrics payloads).
// Object writes overwrite any existing object with the same name.
type Client struct {
	client     *storage.Client
	bucketName string
}

func NewClient(ctx context.Context, bucketName string) (*Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs client: %w", err)
	}

	return &Client{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Upload writes content to objectPath and returns the public object URL.
func (g *Client) Upload(ctx context.Context, objectPath string, content io.Reader) (string, error) {
	bucket := g.client.Bucket(g.bucketName)
	obj := bucket.Object(objectPath)

	writer := obj.NewWriter(ctx)
	if _, err := io.Copy(writer, content); err != nil {
		return "", fmt.Errorf("failed to copy content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucketName, objectPath), nil
}

// UploadBytes writes a byte payload to objectPath.
func (g *Client) UploadBytes(ctx context.Context, objectPath string, payload []byte) (string, error) {
	return g.Upload(ctx, objectPath, bytes.NewReader(payload))
}

func (g *Client) Close() error {
	return g.client.Close()
}
