// internal/registry/repository_test.go
//
// Unit-tests for the connection repository using sqlmock.
//
// Run: go test ./internal/registry -v

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var testID = uuid.MustParse("6f1aa2b4-3c59-4a1d-9a51-0a9c61f1f7de")

func newMock(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "mysql"), nil), mock
}

func connRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "customer_name", "resource_group", "publisher_mode",
		"asset_base_url", "db_conn", "storage_conn", "allow_setup",
		"created_at", "updated_at",
	}).AddRow(testID.String(), "Acme", "rg-acme", "live",
		"https://cdn.acme.example", "Server=db;Database=acme",
		"Bucket=acme;Region=us-east-1;KeyId=k;Key=s", false, now, now)
}

func TestByDomain(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT c\.id,.+JOIN\s+connection_domain`).
		WithArgs("acme.example").
		WillReturnRows(connRows())
	mock.ExpectQuery(`SELECT domain\s+FROM\s+connection_domain`).
		WithArgs(testID).
		WillReturnRows(sqlmock.NewRows([]string{"domain"}).
			AddRow("acme.example").AddRow("www.acme.example"))

	got, err := repo.ByDomain(context.Background(), "ACME.example")
	if err != nil {
		t.Fatalf("ByDomain error: %v", err)
	}
	if got.ID != testID {
		t.Fatalf("id = %s, want %s", got.ID, testID)
	}
	if len(got.DomainNames) != 2 || got.DomainNames[0] != "acme.example" {
		t.Fatalf("unexpected domains: %#v", got.DomainNames)
	}
	if !got.HasDomain("WWW.Acme.Example") {
		t.Fatalf("HasDomain should be case-insensitive")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestByDomain_NotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(`SELECT c\.id,`).
		WithArgs("nobody.example").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.ByDomain(context.Background(), "nobody.example")
	if err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsert_ReplacesDomainsTransactionally(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO connection\s`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM connection_domain`).
		WithArgs(testID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO connection_domain`).
		WithArgs(testID, "acme.example", 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO connection_domain`).
		WithArgs(testID, "shop.acme.example", 1).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	c := &Connection{
		ID:           testID,
		CustomerName: "Acme",
		DomainNames:  []string{"Acme.Example", "SHOP.acme.example"},
	}
	if err := repo.Upsert(context.Background(), c); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestUpsert_RollsBackOnDomainError(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO connection\s`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM connection_domain`).
		WithArgs(testID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO connection_domain`).
		WithArgs(testID, "taken.example", 0).
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	c := &Connection{ID: testID, DomainNames: []string{"taken.example"}}
	if err := repo.Upsert(context.Background(), c); err == nil {
		t.Fatalf("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestWriteSample(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(`INSERT INTO usage_sample`).
		WithArgs(testID, sqlmock.AnyArg(), int64(1024), 7.5).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.WriteSample(context.Background(), Sample{
		ConnectionID:   testID,
		TakenAt:        time.Now(),
		StorageBytes:   1024,
		DBRequestUnits: 7.5,
	})
	if err != nil {
		t.Fatalf("WriteSample error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}
