package download

import (
	"context"
	"fmt"
	"path"

	"gocloud.dev/blob"
)

// BlobMaterializer writes payloads to a gocloud.dev bucket under Prefix.
// The bucket is owned by the caller.
type BlobMaterializer struct {
	Bucket *blob.Bucket
	Prefix string
}

func (bm BlobMaterializer) Materialize(ctx context.Context, name string, env *Envelope) (string, error) {
	if bm.Bucket == nil {
		return "", fmt.Errorf("blob materializer: bucket must not be nil")
	}

	key := path.Join(bm.Prefix, name)

	opts := blob.WriterOptions{
		ContentType: env.ContentType,
	}
	if opts.ContentType == "" {
		opts.ContentType = "application/octet-stream"
	}

	if err := bm.Bucket.WriteAll(ctx, key, env.Bytes, &opts); err != nil {
		return "", fmt.Errorf("writing blob %s: %w", key, err)
	}

	return key, nil
}
