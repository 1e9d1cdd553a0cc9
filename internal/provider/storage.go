// internal/provider/storage.go
//
// Storage driver selection.
//
// The selector's only obligation is to hand back an object satisfying
// Storage; byte-level transport belongs to the drivers.  Dispatch is by
// classified shape, and an unrecognized shape propagates as a typed
// failure so callers can tell "tenant misconfigured" from transient I/O
// errors.
package provider

import (
	"context"
	"io"

	"go.uber.org/zap"
)

// Storage is the narrow interface every backend driver satisfies.
type Storage interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// SelectStorage classifies raw and instantiates the matching driver.
// The S3 driver serves the generic, R2, and service-URL (GCS interop)
// shapes; only the endpoint differs.
func SelectStorage(ctx context.Context, raw string) (Storage, error) {
	cs, err := Classify(raw)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("storage driver selected", zap.Stringer("shape", cs.Shape))

	switch cs.Shape {
	case ShapeAzure:
		return newAzureStorage(cs)
	default:
		return newS3Storage(ctx, cs)
	}
}
