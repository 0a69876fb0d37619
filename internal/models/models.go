package models

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Tenant{},
		&Invoice{},
		&BankTransaction{},
		&ReconciliationRun{},
		&Match{},
		&IdempotencyRecord{},
		&MatchAuditLog{},
	}
}
