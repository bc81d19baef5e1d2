package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GCSClient struct {
	client     *storage.Client
	bucketName string
}

type UploadResult struct {
	ObjectName string `json:"object_name"`
	PublicURL  string `json:"public_url"`
	Size       int64  `json:"size"`
}

func NewGCSClient(ctx context.Context, bucketName, projectID, credentialsPath string) (*GCSClient, error) {
	var client *storage.Client
	var err error

	if credentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(credentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

func (g *GCSClient) UploadFile(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error) {
	obj := g.client.Bucket(g.bucketName).Object(objectName)
	writer := obj.NewWriter(ctx)

	if contentType != "" {
		writer.ContentType = contentType
	}

	size, err := io.Copy(writer, reader)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to copy data to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return &UploadResult{
		ObjectName: objectName,
		PublicURL:  fmt.Sprintf("https://storage.googleapis.com/%s/%s", g.bucketName, objectName),
		Size:       size,
	}, nil
}

func (g *GCSClient) ReadFile(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj := g.client.Bucket(g.bucketName).Object(objectName)
	return obj.NewReader(ctx)
}

func (g *GCSClient) DeleteFile(ctx context.Context, objectName string) error {
	obj := g.client.Bucket(g.bucketName).Object(objectName)
	return obj.Delete(ctx)
}

func (g *GCSClient) Exists(ctx context.Context, objectName string) (bool, error) {
	obj := g.client.Bucket(g.bucketName).Object(objectName)
	_, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat GCS object: %w", err)
	}
	return true, nil
}

// ListObjects returns the object names under the given prefix.
func (g *GCSClient) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	it := g.client.Bucket(g.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list GCS objects under %s: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// DeletePrefix removes every object under the prefix. Used for the task
// deletion cascade.
func (g *GCSClient) DeletePrefix(ctx context.Context, prefix string) error {
	names, err := g.ListObjects(ctx, prefix)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := g.DeleteFile(ctx, name); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("failed to delete GCS object %s: %w", name, err)
		}
	}
	return nil
}

func (g *GCSClient) GetSignedURL(objectName string, expiry time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	}

	return g.client.Bucket(g.bucketName).SignedURL(objectName, opts)
}

func (g *GCSClient) Close() error {
	return g.client.Close()
}

// Object path builders. Everything task-owned lives under tasks/<id>/ so
// the delete cascade is one prefix sweep.

func TemplateObjectName(templateID, filename string) string {
	timestamp := time.Now().Unix()
	return fmt.Sprintf("templates/%s/%d_%s", templateID, timestamp, filename)
}

func GeneratedObjectName(taskID, templateID string) string {
	return fmt.Sprintf("tasks/%s/generated/%s.html", taskID, templateID)
}

func SignedPrefix(taskID, templateID string) string {
	return fmt.Sprintf("tasks/%s/signed/%s/", taskID, templateID)
}

func SignedObjectName(taskID, templateID, fileName string) string {
	return SignedPrefix(taskID, templateID) + fileName
}

func AdditionalObjectName(taskID, fileName string) string {
	return fmt.Sprintf("tasks/%s/additional/%s", taskID, fileName)
}

func TaskPrefix(taskID string) string {
	return fmt.Sprintf("tasks/%s/", taskID)
}

// FileNameFromObject strips the key prefix from a full object name.
func FileNameFromObject(objectName string) string {
	if idx := strings.LastIndex(objectName, "/"); idx != -1 {
		return objectName[idx+1:]
	}
	return objectName
}
