package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"escrow-lab/internal/domain"
	"escrow-lab/internal/storage"
)

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

const insertTransactionQuery = `
	INSERT INTO transactions (
		signature, slot, block_time, fee_payer, fee, compute_units, success, err, accounts, logs
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

const selectTransactionColumns = `
	SELECT signature, slot, block_time, fee_payer, fee, compute_units, success, err, accounts, logs
	FROM transactions
`

func transactionArgs(tx *domain.TransactionRecord) []any {
	return []any{
		tx.Signature,
		tx.Slot,
		tx.BlockTime,
		tx.FeePayer,
		tx.Fee,
		tx.ComputeUnits,
		tx.Success,
		tx.Err,
		tx.Accounts,
		tx.Logs,
	}
}

// Insert adds a new transaction. Returns a DuplicateError if the signature is stored.
func (s *TransactionStore) Insert(ctx context.Context, tx *domain.TransactionRecord) (err error) {
	if tx == nil || tx.Signature == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_transaction", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, insertTransactionQuery, transactionArgs(tx)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.DuplicateSignature(tx.Signature)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// InsertBulk adds multiple transactions atomically. Fails entire batch on any duplicate.
func (s *TransactionStore) InsertBulk(ctx context.Context, txs []*domain.TransactionRecord) (err error) {
	if len(txs) == 0 {
		return nil
	}
	for _, tx := range txs {
		if tx == nil || tx.Signature == "" {
			return storage.ErrInvalidInput
		}
	}
	defer func(start time.Time) { observe("insert_transactions", start, err) }(time.Now())

	dbtx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbtx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, tx := range txs {
		batch.Queue(insertTransactionQuery, transactionArgs(tx)...)
	}

	results := dbtx.SendBatch(ctx, batch)
	for _, tx := range txs {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isDuplicateKeyError(err) {
				return storage.DuplicateSignature(tx.Signature)
			}
			return fmt.Errorf("insert transaction in bulk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := dbtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySignature retrieves a transaction by signature. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetBySignature(ctx context.Context, signature string) (_ *domain.TransactionRecord, err error) {
	defer func(start time.Time) { observe("get_transaction", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, selectTransactionColumns+`WHERE signature = $1`, signature)
	if err != nil {
		return nil, fmt.Errorf("get transaction by signature: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, storage.ErrNotFound
	}
	return txs[0], nil
}

// GetBySlotRange retrieves transactions within slots [from, to] (inclusive).
func (s *TransactionStore) GetBySlotRange(ctx context.Context, from, to int64) (_ []*domain.TransactionRecord, err error) {
	defer func(start time.Time) { observe("get_transactions_by_slot", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, selectTransactionColumns+`
		WHERE slot >= $1 AND slot <= $2
		ORDER BY slot ASC, signature ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("get transactions by slot range: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetByAccount retrieves transactions mentioning account.
func (s *TransactionStore) GetByAccount(ctx context.Context, account string) (_ []*domain.TransactionRecord, err error) {
	defer func(start time.Time) { observe("get_transactions_by_account", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, selectTransactionColumns+`
		WHERE $1 = ANY(accounts)
		ORDER BY slot ASC, signature ASC
	`, account)
	if err != nil {
		return nil, fmt.Errorf("get transactions by account: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// scanTransactions scans multiple rows into a slice of TransactionRecord.
func scanTransactions(rows pgx.Rows) ([]*domain.TransactionRecord, error) {
	var txs []*domain.TransactionRecord

	for rows.Next() {
		var tx domain.TransactionRecord

		err := rows.Scan(
			&tx.Signature,
			&tx.Slot,
			&tx.BlockTime,
			&tx.FeePayer,
			&tx.Fee,
			&tx.ComputeUnits,
			&tx.Success,
			&tx.Err,
			&tx.Accounts,
			&tx.Logs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}

		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return txs, nil
}
