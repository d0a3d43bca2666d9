package migrations

import (
	"database/sql"
	"fmt"
	"time"
)

// AutoMigrateShoppingCart creates the stored-cart table if it does not exist.
// The unique key on (identifier, instance) backs the upsert: at most one
// stored snapshot can exist per pair.
func AutoMigrateShoppingCart(table string, retries int, dbs ...*sql.DB) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INT AUTO_INCREMENT PRIMARY KEY,
			identifier VARCHAR(191) NOT NULL,
			instance VARCHAR(191) NOT NULL,
			content LONGTEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE KEY uniq_identifier_instance (identifier, instance)
		);
	`, table)
	for _, db := range dbs {
		_, err := db.Exec(query)
		if err != nil {
			// Retry creating the table
			for i := 0; i < retries; i++ {
				time.Sleep(1 * time.Second)
				_, err = db.Exec(query)
				if err == nil {
					break
				}
			}
		}
	}
	return nil
}
