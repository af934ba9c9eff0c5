package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"backoffice/internal/domain/audit"
)

const operationLogsTable = "operation_logs"

// CompressionAlgo names how operation log params are stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the params size above which they are stored compressed.
const DefaultCompressThreshold = 10 * 1024

// operationLogRow is the stored shape of audit.Entry.
type operationLogRow struct {
	audit.Entry
	ParamsCompressed []byte          `db:"params_compressed"`
	CompressionAlgo  CompressionAlgo `db:"compression_algo"`
}

// OperationLogStore persists audit entries. Large params are zstd-compressed.
type OperationLogStore struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewOperationLogStore creates an operation log store.
func NewOperationLogStore(txManager *TxManager) (*OperationLogStore, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &OperationLogStore{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: DefaultCompressThreshold,
	}, nil
}

// pack moves oversized params into the compressed column.
func (s *OperationLogStore) pack(entry audit.Entry) operationLogRow {
	row := operationLogRow{Entry: entry, CompressionAlgo: CompressionNone}
	if len(entry.Params) > s.compressThreshold {
		row.ParamsCompressed = s.encoder.EncodeAll(entry.Params, nil)
		row.CompressionAlgo = CompressionZstd
		row.Params = nil
	}
	return row
}

// unpack restores params from the compressed column.
func (s *OperationLogStore) unpack(row operationLogRow) (audit.Entry, error) {
	entry := row.Entry
	if row.CompressionAlgo == CompressionZstd && len(row.ParamsCompressed) > 0 {
		raw, err := s.decoder.DecodeAll(row.ParamsCompressed, nil)
		if err != nil {
			return entry, fmt.Errorf("decompress params of log %d: %w", entry.ID, err)
		}
		entry.Params = json.RawMessage(raw)
	}
	return entry, nil
}

func (s *OperationLogStore) insertQuery(entry audit.Entry) squirrel.InsertBuilder {
	row := s.pack(entry)

	values := map[string]any{
		"admin_id":          row.AdminID,
		"admin_name":        row.AdminName,
		"type":              string(row.Type),
		"module":            row.Module,
		"description":       row.Description,
		"method":            row.Method,
		"url":               row.URL,
		"code":              row.Code,
		"message":           row.Message,
		"ip":                row.IP,
		"user_agent":        row.UserAgent,
		"status":            row.Status,
		"created_at":        row.CreatedAt,
		"compression_algo":  string(row.CompressionAlgo),
		"params_compressed": row.ParamsCompressed,
	}
	if len(row.Params) > 0 {
		values["params"] = []byte(row.Params)
	}

	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert(operationLogsTable).
		SetMap(values)
}

// Write records an entry inside the transaction carried by ctx, if any.
func (s *OperationLogStore) Write(ctx context.Context, entry audit.Entry) error {
	sql, args, err := s.insertQuery(entry).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return WrapError("insert operation log", err)
	}
	return nil
}

func listQuery(filter audit.Filter) squirrel.SelectBuilder {
	q := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select(append(Columns[audit.Entry](), "params_compressed", "compression_algo")...).
		From(operationLogsTable)
	if filter.Module != "" {
		q = q.Where(squirrel.Eq{"module": filter.Module})
	}
	if filter.Action != "" {
		q = q.Where(squirrel.Eq{"type": string(filter.Action)})
	}
	if filter.AdminID != nil {
		q = q.Where(squirrel.Eq{"admin_id": *filter.AdminID})
	}
	return q
}

// List returns matching entries, newest first, with params decompressed.
func (s *OperationLogStore) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, int64, error) {
	q := listQuery(filter)
	querier := s.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, WrapError("count operation logs", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := max(filter.Page, 1)
	sql, args, err := q.OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	var rows []operationLogRow
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, 0, WrapError("list operation logs", err)
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := s.unpack(row)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, nil
}

func pruneQuery(before time.Time) squirrel.DeleteBuilder {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Delete(operationLogsTable).
		Where(squirrel.Lt{"created_at": before})
}

// DeleteOlderThan removes entries created before the cutoff.
func (s *OperationLogStore) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	sql, args, err := pruneQuery(before).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, WrapError("prune operation logs", err)
	}
	return result.RowsAffected(), nil
}

var (
	_ audit.Sink   = (*OperationLogStore)(nil)
	_ audit.Reader = (*OperationLogStore)(nil)
)
