package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Converter converts an amount between currencies at the rate of a given day.
type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, on core.Date) (decimal.Decimal, error)
}

// TransactionInput is a transaction as entered by the user. Amount is a
// positive magnitude; the sign follows IsExpense ("1" or "0").
type TransactionInput struct {
	Date        string
	Description string
	Amount      string
	Category    string
	IsExpense   string
	Currency    string
}

// TransactionService owns the ledger write path: validation, automatic
// categorization, currency conversion and change events.
type TransactionService struct {
	storage      *storage.SQLiteRepository
	categorizer  *Categorizer
	converter    Converter
	publisher    EventPublisher
	mainCurrency string
	now          func() time.Time
}

func NewTransactionService(
	storage *storage.SQLiteRepository,
	categorizer *Categorizer,
	converter Converter,
	publisher EventPublisher,
	mainCurrency string,
) *TransactionService {
	return &TransactionService{
		storage:      storage,
		categorizer:  categorizer,
		converter:    converter,
		publisher:    publisher,
		mainCurrency: strings.ToLower(strings.TrimSpace(mainCurrency)),
		now:          time.Now,
	}
}

func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, error) {
	return s.storage.GetTransaction(ctx, id)
}

// Create validates in and stores it. Nothing is written when conversion to
// the main currency fails.
func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	tx, amount, err := s.validate(in, nil)
	if err != nil {
		return core.Transaction{}, err
	}

	if tx.Category == "" {
		if tx.Category, err = s.categorizer.Resolve(ctx, tx.Description); err != nil {
			return core.Transaction{}, err
		}
	}

	converted, err := s.convert(ctx, amount, in.Currency, tx.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Amount = converted.Signed(tx.IsExpense)

	if tx.ID, err = s.storage.InsertTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}

	publish(ctx, s.publisher, amqp.NewTransactionEvent(amqp.EventTransactionCreated, tx))
	return tx, nil
}

// Update merges the non-empty fields of in over the stored transaction. An
// empty date means today, as on creation.
func (s *TransactionService) Update(ctx context.Context, id int64, in TransactionInput) (core.Transaction, error) {
	existing, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}

	tx, amount, err := s.validate(in, &existing)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = id

	if strings.TrimSpace(in.Amount) != "" {
		if amount, err = s.convert(ctx, amount, in.Currency, tx.Date); err != nil {
			return core.Transaction{}, err
		}
	}
	tx.Amount = amount.Signed(tx.IsExpense)

	ok, err := s.storage.UpdateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}

	publish(ctx, s.publisher, amqp.NewTransactionEvent(amqp.EventTransactionUpdated, tx))
	return tx, nil
}

// Delete reports whether the transaction existed.
func (s *TransactionService) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := s.storage.DeleteTransaction(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	publish(ctx, s.publisher, amqp.NewTransactionEvent(amqp.EventTransactionDeleted, core.Transaction{ID: id}))
	return true, nil
}

// validate checks in and returns the transaction without its final amount,
// plus the amount magnitude. With existing set, empty fields fall back to
// the stored values.
func (s *TransactionService) validate(in TransactionInput, existing *core.Transaction) (core.Transaction, core.Money, error) {
	verr := core.NewValidationError()
	var tx core.Transaction
	var amount core.Money

	if raw := strings.TrimSpace(in.Amount); raw == "" {
		if existing == nil {
			verr.Add("amount", "Amount is required")
		} else {
			amount = existing.Amount.Abs()
		}
	} else if m, err := core.ParseAmount(raw); err != nil {
		verr.Add("amount", "Amount must be a number")
	} else if m.Cents <= 0 {
		verr.Add("amount", "Amount must be greater than 0")
	} else {
		amount = m
	}

	date, err := s.parseDate(in.Date)
	if err != nil {
		verr.Add("date", "Invalid date format")
	}
	tx.Date = date

	tx.Description = strings.TrimSpace(in.Description)
	tx.Category = strings.TrimSpace(in.Category)
	if existing != nil {
		if tx.Description == "" {
			tx.Description = existing.Description
		}
		if tx.Category == "" {
			tx.Category = existing.Category
		}
	}
	if tx.Description == "" {
		verr.Add("description", "Description is required")
	}

	isExpense := strings.TrimSpace(in.IsExpense)
	if isExpense == "" {
		isExpense = "1"
		if existing != nil && !existing.IsExpense {
			isExpense = "0"
		}
	}
	switch isExpense {
	case "1":
		tx.IsExpense = true
	case "0":
	default:
		verr.Add("is_expense", "Invalid type")
	}

	return tx, amount, verr.Err()
}

// parseDate accepts an empty string (today), a real YYYY-MM-DD day or the
// free-form "D", "D M" and "D M Y" shapes.
func (s *TransactionService) parseDate(raw string) (core.Date, error) {
	raw = strings.TrimSpace(raw)
	now := s.now()
	if raw == "" {
		return core.DateOf(now), nil
	}
	if core.IsStrictISODate(raw) {
		return core.ParseISODate(raw)
	}
	return core.ParseFreeformDate(raw, now)
}

func (s *TransactionService) convert(ctx context.Context, amount core.Money, currency string, on core.Date) (core.Money, error) {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" || currency == s.mainCurrency {
		return amount, nil
	}
	if s.converter == nil {
		return core.Money{}, &core.ConversionError{From: currency, To: s.mainCurrency, Err: errors.New("no converter configured")}
	}

	out, err := s.converter.Convert(ctx, amount.Decimal(), currency, s.mainCurrency, on)
	if err != nil {
		var cerr *core.ConversionError
		if errors.As(err, &cerr) {
			return core.Money{}, err
		}
		return core.Money{}, &core.ConversionError{From: currency, To: s.mainCurrency, Err: err}
	}

	slog.InfoContext(ctx, "Converted transaction amount",
		"from", currency,
		"to", s.mainCurrency,
		"amount", amount.String(),
		"converted", out.StringFixed(2),
		"date", on.String())

	return core.MoneyFromDecimal(out), nil
}
