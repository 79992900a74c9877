package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/roach88/harberger/internal/ledger"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testCollection returns collection "c1" at rate 1.
func testCollection() ledger.CollectionParameters {
	return ledger.CollectionParameters{
		CollectionID:        "c1",
		AdminAuthorityID:    "admin",
		DenominationAssetID: "usdc",
		RatePerTimeUnit:     1,
	}
}

// createTestCollection registers collection "c1" with the given rate.
func createTestCollection(t *testing.T, s *Store, rate uint64) ledger.CollectionParameters {
	t.Helper()
	p := testCollection()
	p.RatePerTimeUnit = rate
	err := s.InTx(context.Background(), func(tx *Tx) error {
		return tx.InsertCollection(context.Background(), p)
	})
	if err != nil {
		t.Fatalf("InsertCollection() failed: %v", err)
	}
	return p
}

// putTestBook writes b in its own transaction.
func putTestBook(t *testing.T, s *Store, b *ledger.Book) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx *Tx) error {
		return tx.PutBook(context.Background(), b)
	})
	if err != nil {
		t.Fatalf("PutBook() failed: %v", err)
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
