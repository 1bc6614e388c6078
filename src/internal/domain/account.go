package domain

import "time"

// Account balances are held in the smallest currency unit. Version increases
// by one on every successful mutation and drives the conditional-apply check.
type Account struct {
	ID        string
	Balance   int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
