package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sebuszqo/InvestLog/internal/metrics"
)

// Exporter writes the ledger as CSV and reports how many records it wrote.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) (int, error)
}

type Job struct {
	exporter Exporter
	uploader Uploader
	prefix   string
	metrics  *metrics.Metrics
	now      func() time.Time
	log      zerolog.Logger
}

func NewJob(exporter Exporter, uploader Uploader, prefix string, m *metrics.Metrics, log zerolog.Logger) *Job {
	return &Job{
		exporter: exporter,
		uploader: uploader,
		prefix:   strings.Trim(prefix, "/"),
		metrics:  m,
		now:      time.Now,
		log:      log.With().Str("component", "backup").Logger(),
	}
}

// Key is the object name used for a backup taken at t.
func (j *Job) Key(t time.Time) string {
	name := fmt.Sprintf("investlog_%d.csv", t.Unix())
	if j.prefix == "" {
		return name
	}
	return j.prefix + "/" + name
}

// Run uploads one snapshot of every transaction and returns its key.
func (j *Job) Run(ctx context.Context) (key string, err error) {
	defer func() { j.metrics.ObserveBackup(err) }()

	var buf bytes.Buffer
	count, err := j.exporter.Export(ctx, &buf)
	if err != nil {
		return "", fmt.Errorf("backup: export: %w", err)
	}

	key = j.Key(j.now())
	if err := j.uploader.Put(ctx, key, &buf, "text/csv; charset=utf-8"); err != nil {
		j.log.Error().Err(err).Str("key", key).Msg("backup upload failed")
		return "", err
	}
	j.log.Info().Str("key", key).Int("transactions", count).Msg("backup stored")
	return key, nil
}
