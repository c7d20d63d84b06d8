// Package telemetry keeps a log of every stability test in sqlite.
package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/undervoltctl/internal/errors"
	"codeberg.org/mutker/undervoltctl/internal/logger"
	"codeberg.org/mutker/undervoltctl/internal/storage"
	"codeberg.org/mutker/undervoltctl/internal/sweep"
)

type service struct {
	repo Repository
}

type noopCollector struct{}

// NewService returns a collector backed by sqlite, or a no-op collector when
// telemetry is disabled.
func NewService(cfg Config, log logger.Logger) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Telemetry disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, rec *sweep.TestRecord) error {
	errFactory := errors.New()

	if rec == nil {
		return errFactory.New(ErrInvalidRecord)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Store(rec); err != nil {
			return errFactory.Wrap(ErrRecordFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}
	return nil
}

func (*noopCollector) Record(context.Context, *sweep.TestRecord) error { return nil }

func (*noopCollector) Close() error { return nil }

// History returns the most recent records for coreID, newest first.
func History(ctx context.Context, cfg Config, coreID, limit int, log logger.Logger) ([]sweep.TestRecord, error) {
	errFactory := errors.New()

	db, err := storage.Open(cfg.DBPath, schema, "", log)
	if err != nil {
		return nil, err
	}
	defer storage.Close(db)

	rows, err := db.QueryContext(ctx, selectRecordsSQL, coreID, limit)
	if err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []sweep.TestRecord
	for rows.Next() {
		var (
			rec        sweep.TestRecord
			ts         int64
			durationMS int64
		)
		if err := rows.Scan(
			&rec.RunID, &ts, &rec.CoreID, &rec.FrequencyMHz, &rec.VoltageMV,
			&rec.Passed, &rec.TemperatureAbort, &rec.TimedOut,
			&rec.MaxTemperature, &durationMS, &rec.Err,
		); err != nil {
			return nil, errFactory.Wrap(ErrQueryFailed, err)
		}
		rec.Timestamp = time.Unix(ts, 0)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrQueryFailed, err)
	}

	return out, nil
}
