package service

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/jask/ledgergrid/internal/database/repository"
)

// IngestService imports transactions from CSV.
type IngestService struct {
	Transactions *repository.TransactionRepo
	Log          *zap.Logger
}

type IngestResult struct {
	Imported int
	Skipped  int
	Errors   []error
}

// ImportCSV reads rows of date, description, amount and optionally currency,
// origin and destination. Amount is dollars with an optional minus. A leading
// header row is skipped. Rows already imported are counted as skipped.
func (s *IngestService) ImportCSV(ctx context.Context, r io.Reader, tz *time.Location) (IngestResult, error) {
	res := IngestResult{}
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1
	line := 0
	for {
		line++
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "date") {
			continue
		}
		if len(rec) < 3 {
			res.Errors = append(res.Errors, fmt.Errorf("line %d: expected at least 3 columns (date, description, amount)", line))
			continue
		}
		t, err := parseRow(rec, tz)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("line %d %w", line, err))
			continue
		}
		if err := s.Transactions.Insert(ctx, t); err != nil {
			if isUniqueViolation(err) {
				res.Skipped++
				continue
			}
			res.Errors = append(res.Errors, fmt.Errorf("line %d insert: %w", line, err))
			continue
		}
		res.Imported++
	}
	if s.Log != nil {
		s.Log.Info("csv import", zap.Int("imported", res.Imported), zap.Int("skipped", res.Skipped), zap.Int("errors", len(res.Errors)))
	}
	return res, nil
}

func parseRow(rec []string, tz *time.Location) (repository.Transaction, error) {
	date, err := parseLocalDate(rec[0], tz)
	if err != nil {
		return repository.Transaction{}, fmt.Errorf("date: %w", err)
	}
	desc := strings.TrimSpace(rec[1])
	if desc == "" {
		return repository.Transaction{}, errors.New("description: required")
	}
	amountCents, err := dollarsToCents(rec[2])
	if err != nil {
		return repository.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	currency := "USD"
	if len(rec) > 3 && strings.TrimSpace(rec[3]) != "" {
		currency = strings.ToUpper(strings.TrimSpace(rec[3]))
	}
	t := repository.Transaction{
		ID:          uuid.NewString(),
		Date:        date,
		Description: desc,
		AmountCents: amountCents,
		Currency:    currency,
	}
	if len(rec) > 4 {
		t.Origin = nullableStr(rec[4])
	}
	if len(rec) > 5 {
		t.Destination = nullableStr(rec[5])
	}
	t.Confidence = deriveConfidence(t)
	t.SourceHash = hashSource(date.Format(time.DateOnly), fmt.Sprintf("%d", amountCents), desc, deref(t.Origin))
	return t, nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE")
}

func nullableStr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func hashSource(parts ...string) *string {
	joined := strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(joined))
	h := fmt.Sprintf("%x", sum[:])
	return &h
}

func parseLocalDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
