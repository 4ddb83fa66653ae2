package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Admins push stimuli as inline data URLs, and those references are echoed
// into the persisted results, so 1MB was far too small for real sessions.
func init() {
	m.Register(func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("sessions")
		if err != nil {
			return err
		}

		field, ok := collection.Fields.GetByName("results").(*core.JSONField)
		if !ok {
			return nil
		}
		field.MaxSize = 20 << 20

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("sessions")
		if err != nil {
			return err
		}

		field, ok := collection.Fields.GetByName("results").(*core.JSONField)
		if !ok {
			return nil
		}
		field.MaxSize = 1 << 20

		return app.Save(collection)
	})
}
