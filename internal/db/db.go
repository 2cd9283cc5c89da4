package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	postgrest "github.com/supabase-community/postgrest-go"

	"roastreel/models"
)

// DefaultRunsTable is the table roast runs are written to.
const DefaultRunsTable = "roast_runs"

// Recorder tracks the lifecycle of a roast run. Recording is best effort:
// callers log failures and carry on.
type Recorder interface {
	Start(ctx context.Context, handle, profileURL string) (uuid.UUID, error)
	Stage(ctx context.Context, id uuid.UUID, stage string) error
	Complete(ctx context.Context, id uuid.UUID, videoURL string) error
	Fail(ctx context.Context, id uuid.UUID, stage, code, message string) error
}

// runTable is the subset of the PostgREST client the recorder needs.
type runTable interface {
	insert(run models.RoastRun) ([]models.RoastRun, error)
	update(id uuid.UUID, fields map[string]interface{}) error
}

// PostgrestRecorder writes runs to a Supabase table through PostgREST.
type PostgrestRecorder struct {
	table  runTable
	logger *logrus.Logger
	now    func() time.Time
}

// NewPostgrestRecorder initializes the PostgREST client for the given project.
func NewPostgrestRecorder(restURL, serviceKey, table string, logger *logrus.Logger) (*PostgrestRecorder, error) {
	if restURL == "" || serviceKey == "" {
		return nil, fmt.Errorf("rest url and service key must be set")
	}
	if table == "" {
		table = DefaultRunsTable
	}

	client := postgrest.NewClient(restURL, "", map[string]string{
		"apikey":        serviceKey,
		"Authorization": fmt.Sprintf("Bearer %s", serviceKey),
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("failed to initialize PostgREST client: %w", client.ClientError)
	}

	return newRecorder(&postgrestTable{client: client, name: table}, logger), nil
}

func newRecorder(table runTable, logger *logrus.Logger) *PostgrestRecorder {
	return &PostgrestRecorder{table: table, logger: logger, now: time.Now}
}

// Start inserts a RUNNING record and returns its id.
func (r *PostgrestRecorder) Start(ctx context.Context, handle, profileURL string) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	now := r.now().UTC()
	run := models.RoastRun{
		ID:         uuid.New(),
		Handle:     handle,
		ProfileURL: profileURL,
		Stage:      "received",
		Status:     models.RunStatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	results, err := r.table.insert(run)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert run record: %w", err)
	}
	if len(results) == 0 {
		return uuid.Nil, fmt.Errorf("no record returned after insert, run id: %s", run.ID)
	}

	r.logger.WithFields(logrus.Fields{"run_id": run.ID, "handle": handle}).Debug("Run record created")
	return run.ID, nil
}

// Stage records the stage the run has entered.
func (r *PostgrestRecorder) Stage(ctx context.Context, id uuid.UUID, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.apply(id, map[string]interface{}{
		"stage":      stage,
		"updated_at": r.now().UTC(),
	})
}

// Complete marks the run COMPLETED with the published video URL.
func (r *PostgrestRecorder) Complete(ctx context.Context, id uuid.UUID, videoURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := r.now().UTC()
	return r.apply(id, map[string]interface{}{
		"stage":        "completed",
		"status":       models.RunStatusCompleted,
		"video_url":    videoURL,
		"updated_at":   now,
		"completed_at": now,
	})
}

// Fail marks the run FAILED at the given stage.
func (r *PostgrestRecorder) Fail(ctx context.Context, id uuid.UUID, stage, code, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := r.now().UTC()
	return r.apply(id, map[string]interface{}{
		"stage":         stage,
		"status":        models.RunStatusFailed,
		"error_code":    code,
		"error_message": message,
		"updated_at":    now,
		"completed_at":  now,
	})
}

func (r *PostgrestRecorder) apply(id uuid.UUID, fields map[string]interface{}) error {
	if err := r.table.update(id, fields); err != nil {
		return fmt.Errorf("failed to update run record %s: %w", id, err)
	}
	r.logger.WithFields(logrus.Fields{"run_id": id, "fields": len(fields)}).Debug("Run record updated")
	return nil
}

type postgrestTable struct {
	client *postgrest.Client
	name   string
}

func (t *postgrestTable) insert(run models.RoastRun) ([]models.RoastRun, error) {
	var results []models.RoastRun
	// return=representation makes PostgREST echo the inserted row.
	_, err := t.client.From(t.name).Insert(run, false, "", "representation", "").ExecuteTo(&results)
	return results, err
}

func (t *postgrestTable) update(id uuid.UUID, fields map[string]interface{}) error {
	var results []models.RoastRun
	_, err := t.client.From(t.name).Update(fields, "", "").Eq("id", id.String()).ExecuteTo(&results)
	return err
}

// NopRecorder discards run records. Used when no run table is configured.
type NopRecorder struct{}

func (NopRecorder) Start(context.Context, string, string) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (NopRecorder) Stage(context.Context, uuid.UUID, string) error { return nil }

func (NopRecorder) Complete(context.Context, uuid.UUID, string) error { return nil }

func (NopRecorder) Fail(context.Context, uuid.UUID, string, string, string) error { return nil }
