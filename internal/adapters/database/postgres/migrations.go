package postgres

import "github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"

// Migrations is a list of all gorm migrations for the database.
var Migrations = []interface{}{
	&entity.User{},
	&entity.Event{},
	&entity.Notification{},
	&entity.Report{},
}
