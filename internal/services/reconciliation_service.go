package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// AccountDrift is an account whose stored balance disagrees with the
// balance recorded by its most recent ledger entry
type AccountDrift struct {
	AccountID     int64 `json:"accountId"`
	Balance       int64 `json:"balance"`
	LedgerBalance int64 `json:"ledgerBalance"`
}

type ReconciliationReport struct {
	CheckedAt              time.Time      `json:"checkedAt"`
	UnbalancedTransactions []int64        `json:"unbalancedTransactions"`
	DriftedAccounts        []AccountDrift `json:"driftedAccounts"`
}

func (r *ReconciliationReport) Clean() bool {
	return len(r.UnbalancedTransactions) == 0 && len(r.DriftedAccounts) == 0
}

// ReconciliationService checks that recorded history and account balances agree
type ReconciliationService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewReconciliationService(db *sql.DB, log *logrus.Logger) *ReconciliationService {
	return &ReconciliationService{db: db, log: log}
}

func (s *ReconciliationService) Run(ctx context.Context) (*ReconciliationReport, error) {
	report := &ReconciliationReport{CheckedAt: time.Now().UTC()}

	unbalanced, err := s.unbalancedTransactions(ctx)
	if err != nil {
		return nil, err
	}
	report.UnbalancedTransactions = unbalanced

	drifted, err := s.driftedAccounts(ctx)
	if err != nil {
		return nil, err
	}
	report.DriftedAccounts = drifted

	return report, nil
}

func (s *ReconciliationService) unbalancedTransactions(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT txn_id
		FROM ledger_entries
		GROUP BY txn_id
		HAVING SUM(amount) <> 0
		ORDER BY txn_id`)
	if err != nil {
		return nil, classifyDBError("find unbalanced transactions", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unbalanced transaction: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// driftedAccounts compares against the latest entry by entry ID. Entries for
// an account are inserted while its row lock is held, so entry IDs follow
// the order in which balances were applied.
func (s *ReconciliationService) driftedAccounts(ctx context.Context) ([]AccountDrift, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.balance, e.balance_after
		FROM accounts a
		JOIN LATERAL (
			SELECT le.balance_after
			FROM ledger_entries le
			WHERE le.account_id = a.id
			ORDER BY le.id DESC
			LIMIT 1
		) e ON TRUE
		WHERE a.balance <> e.balance_after
		ORDER BY a.id`)
	if err != nil {
		return nil, classifyDBError("find drifted accounts", err)
	}
	defer rows.Close()

	var drifted []AccountDrift
	for rows.Next() {
		var d AccountDrift
		if err := rows.Scan(&d.AccountID, &d.Balance, &d.LedgerBalance); err != nil {
			return nil, fmt.Errorf("scan drifted account: %w", err)
		}
		drifted = append(drifted, d)
	}
	return drifted, rows.Err()
}

// Schedule registers a periodic reconciliation run on c
func (s *ReconciliationService) Schedule(c *cron.Cron, spec string, timeout time.Duration) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		report, err := s.Run(ctx)
		if err != nil {
			s.log.WithError(err).Error("ledger reconciliation failed")
			return
		}
		if !report.Clean() {
			s.log.WithFields(logrus.Fields{
				"unbalanced_transactions": report.UnbalancedTransactions,
				"drifted_accounts":        report.DriftedAccounts,
			}).Error("ledger reconciliation found inconsistencies")
			return
		}
		s.log.Debug("ledger reconciliation clean")
	})
}
