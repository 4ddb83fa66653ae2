package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("sessions")
		collection.ListRule = nil
		collection.ViewRule = nil
		collection.CreateRule = nil
		collection.UpdateRule = nil
		collection.DeleteRule = nil

		// title field
		collection.Fields.Add(&core.TextField{
			Name:     "title",
			Required: true,
			Max:      200,
		})

		// admin relation
		collection.Fields.Add(&core.RelationField{
			Name:         "admin",
			Required:     true,
			MaxSelect:    1,
			CollectionId: users.Id,
		})

		// invitees field: [{user, status}], status stays "invited" for now
		collection.Fields.Add(&core.JSONField{
			Name:     "invitees",
			Required: false,
			MaxSize:  8192,
		})

		// status field
		collection.Fields.Add(&core.SelectField{
			Name:      "status",
			Required:  true,
			MaxSelect: 1,
			Values:    []string{"active", "completed"},
		})

		// results field: [{imageUrl, gazePoints}]
		collection.Fields.Add(&core.JSONField{
			Name:     "results",
			Required: false,
			MaxSize:  1 << 20,
		})

		collection.Fields.Add(&core.AutodateField{
			Name:     "created",
			OnCreate: true,
		})
		collection.Fields.Add(&core.AutodateField{
			Name:     "updated",
			OnCreate: true,
			OnUpdate: true,
		})

		// Create indexes
		collection.Indexes = []string{
			"CREATE INDEX idx_sessions_admin ON sessions(admin)",
			"CREATE INDEX idx_sessions_status ON sessions(status)",
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("sessions")
		if err == nil && collection != nil {
			return app.Delete(collection)
		}
		return nil
	})
}
