package models

// All lists every persisted model, in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&MerchantAccount{},
		&BusinessProfile{},
		&MerchantConnectorAccount{},
		&MerchantKeyStore{},
		&PaymentIntent{},
		&PaymentAttempt{},
		&Capture{},
		&ProcessTracker{},
		&GatewayStatusMap{},
		&ConfigEntry{},
		&OutboxEvent{},
	}
}
