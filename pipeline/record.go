package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/hairizuanbinnoorazman/shotdiff/run"
)

// recorder mirrors a pipeline run into the run store. A nil store or a
// store failure never fails the pipeline itself.
type recorder struct {
	p  *Pipeline
	id uuid.UUID
}

func (p *Pipeline) begin(ctx context.Context, base, other string) *recorder {
	rec := &recorder{p: p}
	if p.runs == nil {
		return rec
	}

	r := &run.Run{
		ConfigPath:    p.cfg.Source(),
		BaseDomain:    base,
		CompareDomain: other,
		Directory:     p.cfg.Directory,
		Mode:          string(p.cfg.Mode),
		Threshold:     p.cfg.Threshold,
	}
	if r.ConfigPath == "" {
		r.ConfigPath = "-"
	}
	if err := p.runs.Create(ctx, r); err != nil {
		p.logger.Warn(ctx, "run not recorded", map[string]interface{}{"error": err.Error()})
		return rec
	}
	if err := p.runs.Start(ctx, r.ID); err != nil {
		p.logger.Warn(ctx, "run not started", map[string]interface{}{"error": err.Error(), "run_id": r.ID})
		return rec
	}
	rec.id = r.ID
	return rec
}

func (rec *recorder) finish(ctx context.Context, report *Report, runErr error) {
	store, log := rec.p.runs, rec.p.logger
	if store == nil || rec.id == uuid.Nil {
		return
	}
	report.RunID = rec.id

	threshold := rec.p.cfg.Threshold
	results := make([]*run.Result, 0, len(report.Results))
	for _, r := range report.Results {
		results = append(results, &run.Result{
			Label:  r.Label,
			Size:   r.Size,
			Diff:   r.Diff,
			Passed: r.Diff <= threshold,
		})
	}
	if err := store.AddResults(ctx, rec.id, results); err != nil {
		log.Warn(ctx, "run results not recorded", map[string]interface{}{"error": err.Error(), "run_id": rec.id})
	}
	if err := store.Update(ctx, rec.id, run.SetMaxDiff(report.MaxDiff)); err != nil {
		log.Warn(ctx, "run max diff not recorded", map[string]interface{}{"error": err.Error(), "run_id": rec.id})
	}

	status, message := run.StatusPassed, ""
	if runErr != nil {
		status, message = run.StatusFailed, runErr.Error()
	}
	if err := store.Complete(ctx, rec.id, status, message); err != nil {
		log.Warn(ctx, "run not completed", map[string]interface{}{"error": err.Error(), "run_id": rec.id})
	}
}
