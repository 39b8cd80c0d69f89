package submitcontact

import (
	"context"
	stderrors "errors"

	"contact-functions/internal/common/errors"
	"contact-functions/internal/common/logger"
	"contact-functions/internal/common/metrics"
	"contact-functions/internal/common/sheets"
	"contact-functions/internal/models"
)

// LedgerStore is the spreadsheet surface the writer needs. Append on a
// missing partition must return an error matching errors.ErrPartitionNotFound.
type LedgerStore interface {
	AppendRow(ctx context.Context, partition string, row []interface{}) error
	CreatePartition(ctx context.Context, name string) error
	WriteRange(ctx context.Context, partition, rng string, row []interface{}) error
	ReadRange(ctx context.Context, partition, rng string) ([][]interface{}, error)
}

// LedgerWriter is the only writer of the inquiry ledger.
type LedgerWriter struct {
	store  LedgerStore
	logger logger.Logger
}

func NewLedgerWriter(store LedgerStore, log logger.Logger) *LedgerWriter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &LedgerWriter{
		store:  store,
		logger: log.WithFields(map[string]interface{}{"component": "ledger"}),
	}
}

// Append records the inquiry in the year partition. A missing partition is
// created, given its header row and the append is retried exactly once.
// The steps are not transactional: a failed retry can leave a header-only
// partition behind.
func (w *LedgerWriter) Append(ctx context.Context, record models.InquiryRecord, year string) error {
	row := record.Row()

	err := w.store.AppendRow(ctx, year, row)
	if err == nil {
		metrics.LedgerOperations.WithLabelValues("append", "success").Inc()
		return nil
	}

	if !stderrors.Is(err, errors.ErrPartitionNotFound) {
		metrics.LedgerOperations.WithLabelValues("append", "error").Inc()
		return errors.NewLedgerWriteFailedError("append", err.Error(), err)
	}
	metrics.LedgerOperations.WithLabelValues("append", "partition_missing").Inc()

	w.logger.Info("Ledger partition missing, creating it", map[string]interface{}{
		"partition": year,
	})

	if err := w.createPartition(ctx, year); err != nil {
		return err
	}

	if err := w.store.AppendRow(ctx, year, row); err != nil {
		metrics.LedgerOperations.WithLabelValues("append_retry", "error").Inc()
		return errors.NewLedgerWriteFailedError("append_retry", err.Error(), err)
	}
	metrics.LedgerOperations.WithLabelValues("append_retry", "success").Inc()

	return nil
}

// EnsurePartition provisions the year partition ahead of the first
// submission. It reports whether the partition had to be created.
func (w *LedgerWriter) EnsurePartition(ctx context.Context, year string) (bool, error) {
	_, err := w.store.ReadRange(ctx, year, sheets.FirstRowRange(len(models.LedgerHeader)))
	if err == nil {
		return false, nil
	}
	if !stderrors.Is(err, errors.ErrPartitionNotFound) {
		return false, errors.NewLedgerWriteFailedError("lookup", err.Error(), err)
	}

	if err := w.createPartition(ctx, year); err != nil {
		return false, err
	}
	return true, nil
}

func (w *LedgerWriter) createPartition(ctx context.Context, year string) error {
	if err := w.store.CreatePartition(ctx, year); err != nil {
		metrics.LedgerOperations.WithLabelValues("create_partition", "error").Inc()
		return errors.NewLedgerWriteFailedError("create_partition", err.Error(), err)
	}
	metrics.LedgerOperations.WithLabelValues("create_partition", "success").Inc()

	header := sheets.FirstRowRange(len(models.LedgerHeader))
	if err := w.store.WriteRange(ctx, year, header, models.LedgerHeader); err != nil {
		metrics.LedgerOperations.WithLabelValues("write_header", "error").Inc()
		return errors.NewLedgerWriteFailedError("write_header", err.Error(), err)
	}
	metrics.LedgerOperations.WithLabelValues("write_header", "success").Inc()
	metrics.LedgerPartitionsCreated.Inc()

	w.logger.Info("Ledger partition created", map[string]interface{}{
		"partition": year,
	})
	return nil
}
