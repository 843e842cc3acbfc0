package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

type fixedRateConverter struct {
	rate  decimal.Decimal
	err   error
	calls []string
}

func (c *fixedRateConverter) Convert(_ context.Context, amount decimal.Decimal, from, to string, on core.Date) (decimal.Decimal, error) {
	c.calls = append(c.calls, from+">"+to+"@"+on.String())
	if c.err != nil {
		return decimal.Zero, c.err
	}
	return amount.Mul(c.rate).Round(2), nil
}

func newTransactionService(t *testing.T, conv Converter) (*TransactionService, *recordingPublisher) {
	t.Helper()
	repo := newTestRepo(t)
	pub := &recordingPublisher{}
	svc := NewTransactionService(repo, NewCategorizer(staticKeywords{"food": {"Coffee"}}), conv, pub, "EUR")
	svc.now = func() time.Time { return at("2026-10-16") }
	return svc, pub
}

func TestTransactionServiceCreate(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTransactionService(t, nil)

	tests := []struct {
		name  string
		in    TransactionInput
		check func(t *testing.T, tx core.Transaction)
	}{
		{
			name: "expense with auto category and today",
			in:   TransactionInput{Description: "Coffee", Amount: "3,50"},
			check: func(t *testing.T, tx core.Transaction) {
				assert.Equal(t, "2026-10-16", tx.Date.String())
				assert.Equal(t, int64(-350), tx.Amount.Cents)
				assert.Equal(t, "food", tx.Category)
				assert.True(t, tx.IsExpense)
			},
		},
		{
			name: "income keeps positive sign",
			in:   TransactionInput{Date: "2026-10-01", Description: "Salary", Amount: "2500", Category: "work", IsExpense: "0"},
			check: func(t *testing.T, tx core.Transaction) {
				assert.Equal(t, int64(250000), tx.Amount.Cents)
				assert.False(t, tx.IsExpense)
			},
		},
		{
			name: "free form date",
			in:   TransactionInput{Date: "3 2", Description: "Books", Amount: "20"},
			check: func(t *testing.T, tx core.Transaction) {
				assert.Equal(t, "2026-02-03", tx.Date.String())
				assert.Equal(t, DefaultCategory, tx.Category)
			},
		},
		{
			name: "main currency in other case is not converted",
			in:   TransactionInput{Description: "Lunch", Amount: "12", Currency: "eur"},
			check: func(t *testing.T, tx core.Transaction) {
				assert.Equal(t, int64(-1200), tx.Amount.Cents)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := svc.Create(ctx, tt.in)
			require.NoError(t, err)
			require.NotZero(t, tx.ID)

			stored, err := svc.Get(ctx, tx.ID)
			require.NoError(t, err)
			assert.Equal(t, tx, stored)
			tt.check(t, stored)
		})
	}

	assert.Len(t, pub.types(), len(tests))
}

func TestTransactionServiceCreateValidation(t *testing.T) {
	svc, pub := newTransactionService(t, nil)

	tests := []struct {
		name  string
		in    TransactionInput
		field string
	}{
		{"missing amount", TransactionInput{Description: "x"}, "amount"},
		{"zero amount", TransactionInput{Description: "x", Amount: "0"}, "amount"},
		{"negative amount", TransactionInput{Description: "x", Amount: "-5"}, "amount"},
		{"text amount", TransactionInput{Description: "x", Amount: "five"}, "amount"},
		{"missing description", TransactionInput{Amount: "5"}, "description"},
		{"impossible iso date", TransactionInput{Description: "x", Amount: "5", Date: "2024-02-31"}, "date"},
		{"garbage date", TransactionInput{Description: "x", Amount: "5", Date: "yesterday"}, "date"},
		{"bad type", TransactionInput{Description: "x", Amount: "5", IsExpense: "yes"}, "is_expense"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
	assert.Empty(t, pub.types())
}

func TestTransactionServiceConversion(t *testing.T) {
	ctx := context.Background()

	t.Run("converted at the transaction date", func(t *testing.T) {
		conv := &fixedRateConverter{rate: decimal.RequireFromString("0.9")}
		svc, _ := newTransactionService(t, conv)

		tx, err := svc.Create(ctx, TransactionInput{Date: "2026-09-30", Description: "Hotel", Amount: "100", Currency: "USD"})
		require.NoError(t, err)
		assert.Equal(t, int64(-9000), tx.Amount.Cents)
		assert.Equal(t, []string{"usd>eur@2026-09-30"}, conv.calls)
	})

	t.Run("failure writes nothing", func(t *testing.T) {
		conv := &fixedRateConverter{err: errors.New("upstream timeout")}
		svc, pub := newTransactionService(t, conv)

		_, err := svc.Create(ctx, TransactionInput{Description: "Hotel", Amount: "100", Currency: "usd"})
		var cerr *core.ConversionError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "usd", cerr.From)
		assert.Equal(t, "eur", cerr.To)

		txs := allTransactions(t, svc.storage)
		assert.Empty(t, txs)
		assert.Empty(t, pub.types())
	})

	t.Run("no converter configured", func(t *testing.T) {
		svc, _ := newTransactionService(t, nil)
		_, err := svc.Create(ctx, TransactionInput{Description: "Hotel", Amount: "100", Currency: "gbp"})
		var cerr *core.ConversionError
		assert.ErrorAs(t, err, &cerr)
	})
}

func TestTransactionServiceUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTransactionService(t, nil)

	tx, err := svc.Create(ctx, TransactionInput{Date: "2026-10-01", Description: "Coffee", Amount: "3.5"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, tx.ID, TransactionInput{Date: "2026-10-02", IsExpense: "0"})
	require.NoError(t, err)
	assert.Equal(t, "Coffee", updated.Description)
	assert.Equal(t, "food", updated.Category)
	assert.Equal(t, int64(350), updated.Amount.Cents)
	assert.Equal(t, "2026-10-02", updated.Date.String())

	updated, err = svc.Update(ctx, tx.ID, TransactionInput{Amount: "4"})
	require.NoError(t, err)
	assert.Equal(t, "2026-10-16", updated.Date.String())
	assert.False(t, updated.IsExpense)
	assert.Equal(t, int64(400), updated.Amount.Cents)

	_, err = svc.Update(ctx, 999, TransactionInput{Amount: "4"})
	assert.ErrorIs(t, err, core.ErrNotFound)

	ok, err := svc.Delete(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Delete(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []amqp.EventType{
		amqp.EventTransactionCreated,
		amqp.EventTransactionUpdated,
		amqp.EventTransactionUpdated,
		amqp.EventTransactionDeleted,
	}, pub.types())
}
