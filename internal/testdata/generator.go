package testdata

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/jask/ledgergrid/internal/database/repository"
)

type sample struct {
	desc     string
	entity   string
	category string
	sub      string
}

var samples = []sample{
	{"UBER TRIP %d", "Uber", "Travel", "Ground transport"},
	{"AMAZON.COM*%d", "Amazon", "Office", "Supplies"},
	{"AWS EMEA %d", "Amazon Web Services", "Software", "Hosting"},
	{"DELTA AIR %d", "", "", ""},
	{"PAYROLL RUN %d", "", "Payroll", "Salaries"},
	{"COINBASE TRANSFER %d", "", "", ""},
	{"GITHUB INC %d", "GitHub", "Software", "Subscriptions"},
	{"STARBUCKS #%d", "", "", ""},
}

var wallets = []string{
	"Operating Checking",
	"Corporate Card",
	"0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
	"bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
}

// Seed inserts n sample transactions spread over the last 60 days. The same
// seed always produces the same rows apart from ids.
func Seed(ctx context.Context, repo *repository.TransactionRepo, n int, seed int64) error {
	r := rand.New(rand.NewSource(seed))
	now := time.Now().UTC().Truncate(24 * time.Hour)
	for i := 0; i < n; i++ {
		s := samples[r.Intn(len(samples))]
		amount := -int64(r.Intn(20000) + 500)
		if s.category == "Payroll" {
			amount *= 10
		}
		tx := repository.Transaction{
			ID:          uuid.NewString(),
			Date:        now.AddDate(0, 0, -r.Intn(60)),
			Description: fmt.Sprintf(s.desc, 1000+r.Intn(9000)),
			AmountCents: amount,
			Currency:    "USD",
			Confidence:  0.1,
		}
		if r.Intn(3) > 0 {
			tx.ClassifiedEntity = opt(s.entity)
			tx.AccountingCategory = opt(s.category)
			tx.Subcategory = opt(s.sub)
		}
		if r.Intn(2) == 0 {
			tx.Origin = opt(wallets[r.Intn(len(wallets))])
		}
		if tx.ClassifiedEntity != nil {
			tx.Confidence += 0.3
		}
		if tx.AccountingCategory != nil {
			tx.Confidence += 0.3
		}
		if err := repo.Insert(ctx, tx); err != nil {
			return fmt.Errorf("seed transaction %d: %w", i, err)
		}
	}
	return nil
}

func opt(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
