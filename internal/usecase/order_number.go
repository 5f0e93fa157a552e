package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Rubin-11/coffee-tea-shop/internal/domain"
)

const orderNumberPrefix = "ORD"

// FormatOrderNumber renders ORD-<year>-<sequence>, the sequence zero padded
// to five digits.
func FormatOrderNumber(year, seq int) string {
	return fmt.Sprintf("%s-%d-%05d", orderNumberPrefix, year, seq)
}

func ParseOrderNumber(number string) (year, seq int, err error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != orderNumberPrefix {
		return 0, 0, fmt.Errorf("malformed order number %q", number)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return 0, 0, fmt.Errorf("malformed year in order number %q", number)
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil || seq < 1 || len(parts[2]) < 5 {
		return 0, 0, fmt.Errorf("malformed sequence in order number %q", number)
	}
	return year, seq, nil
}

// NextOrderNumber allocates the next number of the year now falls in. It
// must run inside the transaction that inserts the order: the numbering
// lock is held until that transaction ends.
func NextOrderNumber(ctx context.Context, orders domain.OrderRepository, now time.Time) (string, error) {
	year := now.Year()
	if err := orders.LockNumbering(ctx, year); err != nil {
		return "", err
	}
	last, err := orders.LastSequence(ctx, year)
	if err != nil {
		return "", err
	}
	return FormatOrderNumber(year, last+1), nil
}
