// Package archive keeps a copy of raw gateway payloads outside the database.
package archive

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

type PutInput struct {
	// Kind groups objects under the driver prefix, e.g. "webhooks".
	Kind        string
	ContentType string
	At          time.Time
}

type PutResult struct {
	Key      string
	Location string
}

type Archive interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
}

// objectKey lays objects out as <prefix>/<kind>/yyyy/mm/dd/<uuid>.json.
func objectKey(prefix string, in PutInput) string {
	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	return strings.TrimPrefix(path.Join(
		strings.Trim(prefix, "/"),
		strings.Trim(in.Kind, "/"),
		at.UTC().Format("2006/01/02"),
		uuid.NewString()+".json",
	), "/")
}
