package models

// All lists every persisted model in dependency order for AutoMigrate.
func All() []any {
	return []any{
		&Organization{},
		&User{},
		&Client{},
		&Invoice{},
		&Payment{},
		&Subscription{},
		&WebsiteProject{},
		&ChangeRequest{},
		&BusinessInsight{},
		&Employee{},
		&PayrollSnapshot{},
		&PayrollEntry{},
		&Integration{},
		&AuditLog{},
		&ChatMessage{},
		&IndustryBenchmark{},
	}
}
