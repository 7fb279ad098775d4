package models

// All lists every persisted entity, in migration order.
func All() []any {
	return []any{
		&User{},
		&APIKey{},
		&Event{},
		&EventCoordinator{},
		&Team{},
		&TeamMember{},
		&Registration{},
		&Attendance{},
		&Counter{},
	}
}
