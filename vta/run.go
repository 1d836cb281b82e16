package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ioyurev/vta-collection/pkg/measurement"
	"github.com/ioyurev/vta-collection/pkg/session"
)

// summaryRows is the number of temperature rows printed after a run.
const summaryRows = 10

// run performs one heating run and saves its archive.
type run struct {
	session  *session.Session
	log      logrus.FieldLogger
	duration time.Duration
	out      string
}

func (r *run) execute(ctx context.Context) error {
	cfg := r.session.Config()

	if err := r.session.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	meta := measurement.NewMetadata(cfg.Measurement.Sample, cfg.Measurement.Operator)
	if err := r.session.NewRun(meta); err != nil {
		return fmt.Errorf("new run: %w", err)
	}
	if err := r.session.StartLoop(); err != nil {
		return fmt.Errorf("start loop: %w", err)
	}
	if err := r.session.StartHeating(); err != nil {
		return fmt.Errorf("start heating: %w", err)
	}
	r.log.Infof("heating %q for %s at %g mV/s", meta.Sample, r.duration, cfg.Heater.DefaultSpeed)

	r.follow(ctx, r.session.Samples())

	if err := r.session.StopHeating(); err != nil {
		return fmt.Errorf("stop heating: %w", err)
	}
	if err := r.session.StopLoop(); err != nil {
		r.log.Warnf("stop loop: %v", err)
	}

	archive, err := r.session.Archive()
	if err != nil {
		return err
	}
	path := r.out
	if path == "" {
		path = defaultArchivePath(cfg.Measurement.OutputDir, meta)
	}
	if err := save(archive, path); err != nil {
		return err
	}
	r.log.Infof("saved %d points to %s", archive.EMF.Len(), path)

	printSummary(r.session.Recorder().Temperature())
	return nil
}

// follow logs progress once a second until the run duration elapses or ctx
// is cancelled.
func (r *run) follow(ctx context.Context, samples <-chan measurement.Sample) {
	deadline := time.NewTimer(r.duration)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last measurement.Sample
	for {
		select {
		case <-ctx.Done():
			r.log.Warn("interrupted")
			return
		case <-deadline.C:
			return
		case s, ok := <-samples:
			if !ok {
				return
			}
			last = s
		case <-ticker.C:
			r.log.WithFields(logrus.Fields{
				"t":      fmt.Sprintf("%.1f", last.Time),
				"emf":    fmt.Sprintf("%.4f", last.EMF),
				"temp":   fmt.Sprintf("%.1f", last.Temperature),
				"output": fmt.Sprintf("%.3f", last.Output),
			}).Info("progress")
		}
	}
}

func defaultArchivePath(dir string, meta measurement.Metadata) string {
	name := meta.CreatedAt.Format("20060102-150405")
	if meta.Sample != "" {
		name += " " + meta.Sample
	}
	return filepath.Join(dir, name)
}

func save(a *measurement.Archive, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".vtaz") {
		return a.WriteDir(path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	if err := a.WriteZip(f); err != nil {
		f.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	return f.Close()
}

func printSummary(temp *measurement.Series) {
	if temp.Len() == 0 {
		return
	}
	fmt.Printf("%10s  %s\n", temp.XLabel, temp.YLabel)
	rows := temp.Downsample(nil, summaryRows)
	for i := range rows.X {
		fmt.Printf("%10.1f  %.2f\n", rows.X[i], rows.Y[i])
	}
}
