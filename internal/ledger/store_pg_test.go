package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreConsumeLocksAndAppends(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	e := Entry{ID: "e1", UserID: "u1", Amount: 1, Kind: KindConsume, Description: "analysis", CreatedAt: time.Now().UTC()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credit_accounts").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT user_id FROM credit_accounts WHERE user_id = \\$1 FOR UPDATE").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))
	mock.ExpectQuery("SELECT COALESCE\\(SUM").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(2))
	mock.ExpectExec("INSERT INTO credit_ledger").
		WithArgs("e1", "u1", 1, "consume", "analysis", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE credit_accounts").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	remaining, err := NewPGStore(db).Consume(context.Background(), e)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected 1 remaining, got %d", remaining)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreConsumeInsufficientRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO credit_accounts").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT user_id FROM credit_accounts").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))
	mock.ExpectQuery("SELECT COALESCE\\(SUM").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(0))
	mock.ExpectRollback()

	_, err = NewPGStore(db).Consume(context.Background(), Entry{ID: "e1", UserID: "u1", Amount: 1, Kind: KindConsume})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreClaimFree(t *testing.T) {
	tests := []struct {
		name  string
		held  int
		done  int
		claim bool
	}{
		{name: "first free analysis", held: 0, done: 0, claim: true},
		{name: "claim still running", held: 1, done: 0, claim: false},
		{name: "analysis already recorded", held: 0, done: 1, claim: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("sqlmock: %v", err)
			}
			defer db.Close()

			mock.ExpectBegin()
			mock.ExpectExec("INSERT INTO credit_accounts").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery("SELECT user_id FROM credit_accounts").
				WithArgs("u1").
				WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))
			mock.ExpectQuery("WHEN kind = 'free_claim'").WithArgs("u1").
				WillReturnRows(sqlmock.NewRows([]string{"claimed"}).AddRow(tt.held))
			if tt.claim {
				mock.ExpectExec("INSERT INTO credit_ledger").
					WithArgs("c1", "u1", 1, "free_claim", "cv analysis", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("UPDATE credit_accounts").WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
			}
			mock.ExpectCommit()

			e := Entry{ID: "c1", UserID: "u1", Amount: 1, Kind: KindFreeClaim, Description: "cv analysis", CreatedAt: time.Now().UTC()}
			ok, err := NewPGStore(db).ClaimFree(context.Background(), e, 1, tt.done)
			if err != nil {
				t.Fatalf("ClaimFree: %v", err)
			}
			if ok != tt.claim {
				t.Fatalf("expected claim=%v, got %v", tt.claim, ok)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("expectations: %v", err)
			}
		})
	}
}
