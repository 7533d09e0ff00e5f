// Package object provides the object-storage preference provider. Each
// preference lives as its own JSON object under a configurable prefix,
// so keys can be read, written and removed independently and GetAll is
// a prefix listing.
package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"prefs-manager/core/prefs"
	"prefs-manager/core/storage"

	"github.com/minio/minio-go/v7"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "prefs"

// Provider stores one object per preference key:
//
//	<prefix>/<key>.json
//
// The object's last-modified time serves as the record timestamp.
type Provider struct {
	name     string
	priority prefs.Priority
	client   storage.Client
	bucket   string
	prefix   string
}

// New returns a provider over the given storage client and bucket. An
// empty prefix falls back to DefaultPrefix.
func New(name string, priority prefs.Priority, client storage.Client, bucket, prefix string) *Provider {
	if name == "" {
		name = "object"
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Provider{
		name:     name,
		priority: priority,
		client:   client,
		bucket:   bucket,
		prefix:   strings.TrimSuffix(prefix, "/"),
	}
}

func (p *Provider) Name() string             { return p.name }
func (p *Provider) Priority() prefs.Priority { return p.priority }

// Initialize verifies the bucket exists, creating it when it does not.
func (p *Provider) Initialize(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", p.bucket, err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", p.bucket, err)
		}
	}
	return nil
}

func (p *Provider) Get(ctx context.Context, key string) (prefs.Metadata, bool, error) {
	objectName := p.objectName(key)

	info, err := p.client.StatObject(ctx, p.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return prefs.Metadata{}, false, nil
		}
		return prefs.Metadata{}, false, fmt.Errorf("stat %s: %w", objectName, err)
	}

	reader, err := p.client.GetObject(ctx, p.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return prefs.Metadata{}, false, fmt.Errorf("get %s: %w", objectName, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		if isNoSuchKey(err) {
			return prefs.Metadata{}, false, nil
		}
		return prefs.Metadata{}, false, fmt.Errorf("read %s: %w", objectName, err)
	}

	value, err := prefs.ParseValue(data)
	if err != nil {
		return prefs.Metadata{}, false, fmt.Errorf("parse %s: %w", objectName, err)
	}
	return p.record(key, value, info.LastModified), true, nil
}

func (p *Provider) GetAll(ctx context.Context) (map[string]prefs.Metadata, error) {
	out := make(map[string]prefs.Metadata)
	for info := range p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
		Prefix:    p.prefix + "/",
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("list %s: %w", p.prefix, info.Err)
		}
		key, ok := p.prefKey(info.Key)
		if !ok {
			continue
		}
		md, found, err := p.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			out[key] = md
		}
	}
	return out, nil
}

func (p *Provider) Set(ctx context.Context, key string, value prefs.Value) error {
	data, err := value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	objectName := p.objectName(key)
	_, err = p.client.PutObject(ctx, p.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", objectName, err)
	}
	return nil
}

func (p *Provider) Has(ctx context.Context, key string) (bool, error) {
	_, err := p.client.StatObject(ctx, p.bucket, p.objectName(key), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", p.objectName(key), err)
	}
	return true, nil
}

func (p *Provider) Delete(ctx context.Context, key string) (bool, error) {
	objectName := p.objectName(key)

	_, err := p.client.StatObject(ctx, p.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", objectName, err)
	}

	if err := p.client.RemoveObject(ctx, p.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return false, fmt.Errorf("remove %s: %w", objectName, err)
	}
	return true, nil
}

func (p *Provider) Clear(ctx context.Context) error {
	for info := range p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
		Prefix:    p.prefix + "/",
		Recursive: true,
	}) {
		if info.Err != nil {
			return fmt.Errorf("list %s: %w", p.prefix, info.Err)
		}
		if err := p.client.RemoveObject(ctx, p.bucket, info.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s: %w", info.Key, err)
		}
	}
	return nil
}

// objectName maps "ui.theme" to "prefs/ui.theme.json".
func (p *Provider) objectName(key string) string {
	return p.prefix + "/" + key + ".json"
}

// prefKey maps an object name back to a preference key; objects outside
// the prefix/suffix shape are not preference-bearing.
func (p *Provider) prefKey(objectName string) (string, bool) {
	name, ok := strings.CutPrefix(objectName, p.prefix+"/")
	if !ok {
		return "", false
	}
	key, ok := strings.CutSuffix(name, ".json")
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func (p *Provider) record(key string, value prefs.Value, ts time.Time) prefs.Metadata {
	return prefs.Metadata{
		Key:       key,
		Value:     value,
		Priority:  p.priority,
		Source:    p.name,
		Timestamp: ts,
	}
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
