package internal

import (
	"fmt"

	"LT-FLOW/internal/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// OpenDB connects to MySQL and bootstraps the schema. The handle is
// returned for injection; nothing here holds package-level state.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := cfg.Database.DSN()

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	fmt.Println("Database connected and migrated successfully")
	return db, nil
}

func autoMigrate(db *gorm.DB) error {
	// Create tables only if they don't exist (preserve existing data)
	fmt.Println("Ensuring document_templates table exists...")
	result := db.Exec(`
        CREATE TABLE IF NOT EXISTS document_templates (
            id varchar(36) PRIMARY KEY,
            name longtext NOT NULL,
            status varchar(20) DEFAULT 'draft',
            content longtext,
            gcs_path longtext,
            file_size bigint,
            mime_type longtext,
            placeholders json,
            custom_fields json,
            created_at datetime(3) NULL,
            updated_at datetime(3) NULL,
            deleted_at datetime(3) NULL,
            INDEX idx_document_templates_deleted_at (deleted_at)
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create document_templates table: %w", result.Error)
	}

	ensureTemplateColumns := map[string]string{
		"name":          "ALTER TABLE document_templates ADD COLUMN name longtext",
		"status":        "ALTER TABLE document_templates ADD COLUMN status varchar(20) DEFAULT 'draft'",
		"content":       "ALTER TABLE document_templates ADD COLUMN content longtext",
		"gcs_path":      "ALTER TABLE document_templates ADD COLUMN gcs_path longtext",
		"file_size":     "ALTER TABLE document_templates ADD COLUMN file_size bigint",
		"mime_type":     "ALTER TABLE document_templates ADD COLUMN mime_type longtext",
		"placeholders":  "ALTER TABLE document_templates ADD COLUMN placeholders json",
		"custom_fields": "ALTER TABLE document_templates ADD COLUMN custom_fields json",
	}

	for column, stmt := range ensureTemplateColumns {
		if err := ensureColumn(db, "document_templates", column, stmt); err != nil {
			return err
		}
	}

	fmt.Println("Creating clients table if not exists...")
	result = db.Exec(`
        CREATE TABLE IF NOT EXISTS clients (
            id varchar(36) PRIMARY KEY,
            first_name longtext NOT NULL,
            last_name longtext NOT NULL,
            email longtext,
            phone varchar(45),
            street longtext,
            city longtext,
            state longtext,
            postal_code varchar(20),
            country longtext,
            date_of_birth varchar(20),
            notes text,
            created_at datetime(3) NULL,
            updated_at datetime(3) NULL,
            deleted_at datetime(3) NULL,
            INDEX idx_clients_deleted_at (deleted_at)
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create clients table: %w", result.Error)
	}

	fmt.Println("Creating tasks table if not exists...")
	result = db.Exec(`
        CREATE TABLE IF NOT EXISTS tasks (
            id varchar(36) PRIMARY KEY,
            client_id varchar(36) NOT NULL,
            status varchar(20) DEFAULT 'draft',
            template_ids json,
            custom_field_values json,
            generated_documents json,
            additional_files json,
            generation_error text,
            completed_at datetime(3) NULL,
            created_at datetime(3) NULL,
            updated_at datetime(3) NULL,
            deleted_at datetime(3) NULL,
            INDEX idx_tasks_client_id (client_id),
            INDEX idx_tasks_deleted_at (deleted_at)
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create tasks table: %w", result.Error)
	}

	ensureTaskColumns := map[string]string{
		"template_ids":        "ALTER TABLE tasks ADD COLUMN template_ids json",
		"custom_field_values": "ALTER TABLE tasks ADD COLUMN custom_field_values json",
		"generated_documents": "ALTER TABLE tasks ADD COLUMN generated_documents json",
		"additional_files":    "ALTER TABLE tasks ADD COLUMN additional_files json",
		"generation_error":    "ALTER TABLE tasks ADD COLUMN generation_error text",
		"completed_at":        "ALTER TABLE tasks ADD COLUMN completed_at datetime(3) NULL",
	}

	for column, stmt := range ensureTaskColumns {
		if err := ensureColumn(db, "tasks", column, stmt); err != nil {
			return err
		}
	}

	fmt.Println("Creating activity_logs table if not exists...")
	result = db.Exec(`
        CREATE TABLE IF NOT EXISTS activity_logs (
            id varchar(36) PRIMARY KEY,
            method varchar(10) NOT NULL,
            path varchar(255) NOT NULL,
            user_agent text,
            ip_address varchar(45),
            request_body text,
            query_params text,
            status_code int NOT NULL,
            response_time bigint NOT NULL,
            created_at datetime(3) NULL,
            updated_at datetime(3) NULL,
            deleted_at datetime(3) NULL,
            INDEX idx_activity_logs_deleted_at (deleted_at),
            INDEX idx_activity_logs_method (method),
            INDEX idx_activity_logs_path (path),
            INDEX idx_activity_logs_created_at (created_at)
        )
    `)
	if result.Error != nil {
		return fmt.Errorf("failed to create activity_logs table: %w", result.Error)
	}

	fmt.Println("Tables created/verified successfully")
	return nil
}

func ensureColumn(db *gorm.DB, table, column, statement string) error {
	if db.Migrator().HasColumn(table, column) {
		return nil
	}

	fmt.Printf("Adding missing column %s.%s...\n", table, column)
	if err := db.Exec(statement).Error; err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}

	return nil
}

func CloseDB(db *gorm.DB) error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
