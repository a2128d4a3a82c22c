package models

// All returns every persisted entity in dependency order. Migrations and
// tests register exactly this list.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&Review{},
		&Cart{},
		&CartItem{},
		&Order{},
		&OrderItem{},
	}
}
