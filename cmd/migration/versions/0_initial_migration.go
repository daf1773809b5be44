package versions

import (
	"log"

	"mcs_platform/monitor/schema"

	"gorm.io/gorm"
)

// Migration_0_initial_migration creates the full monitoring schema on a fresh
// database. Later versions alter from here, they never recreate.
func Migration_0_initial_migration(txn *gorm.DB) error {
	log.Println("performing initial migration of the monitoring schema")

	if err := txn.Migrator().AutoMigrate(schema.AllTables()...); err != nil {
		return err
	}

	log.Println("initial migration complete")

	return nil
}

func Rollback_0_initial_migration(txn *gorm.DB) error {
	tables := schema.AllTables()
	// Children are listed after their parents, drop in reverse order.
	for i := len(tables) - 1; i >= 0; i-- {
		if err := txn.Migrator().DropTable(tables[i]); err != nil {
			return err
		}
	}
	return nil
}
