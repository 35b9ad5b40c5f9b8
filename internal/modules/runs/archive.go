package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/rs/zerolog"
)

// Archiver ships finished runs to long-term storage.
type Archiver interface {
	Archive(ctx context.Context, run *Run) error
}

// NopArchiver discards runs. Used when archiving is disabled.
type NopArchiver struct{}

// Archive implements Archiver.
func (NopArchiver) Archive(context.Context, *Run) error { return nil }

// ObjectStore is the storage the S3 archiver writes to.
// Satisfied by *objectstore.Client.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
}

// S3Archiver uploads a JSON report per run to prefix/<date>/<id>.json.
type S3Archiver struct {
	store  ObjectStore
	prefix string
	log    zerolog.Logger
}

// NewS3Archiver creates an archiver writing under prefix
func NewS3Archiver(store ObjectStore, prefix string, log zerolog.Logger) *S3Archiver {
	return &S3Archiver{
		store:  store,
		prefix: prefix,
		log:    log.With().Str("component", "s3_archiver").Logger(),
	}
}

// Key returns the object key a run is archived under.
func (a *S3Archiver) Key(run *Run) string {
	return path.Join(a.prefix, run.CreatedAt.UTC().Format("2006-01-02"), run.ID+".json")
}

// Archive implements Archiver.
func (a *S3Archiver) Archive(ctx context.Context, run *Run) error {
	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	key := a.Key(run)
	if err := a.store.Upload(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return fmt.Errorf("failed to archive run %s: %w", run.ID, err)
	}

	a.log.Info().Str("key", key).Int("bytes", len(body)).Msg("Archived run")
	return nil
}
