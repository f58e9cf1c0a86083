package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/fcgcloud/payments/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}

	// Postgres may still be starting when the service comes up in a
	// container environment; retry the first ping before giving up.
	err = backoff.Retry(db.Ping, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 8))
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}

	err = CreateTables(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// CreateTables creates the payment projection, the event ledger and the
// outbox tables. Also used by the migrate command.
func CreateTables(db *sql.DB) error {
	err := createPaymentTable(db)
	if err != nil {
		return err
	}
	err = createPaymentEventsTable(db)
	if err != nil {
		return err
	}
	err = createOutboxTable(db)
	if err != nil {
		return err
	}
	return nil
}

// createPaymentTable creates a PostgreSQL table for the Payment struct
func createPaymentTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			id SERIAL PRIMARY KEY,
			payment_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			game_id TEXT,
			amount NUMERIC(20,4) NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP
		)
	`)
	if err != nil {
		log.Printf("Error creating payments table: %v", err)
	}
	return err
}

// createPaymentEventsTable creates the append-only audit ledger. The
// partial unique index over source_message_id is the idempotency
// invariant: at most one event per inbound message id, null ids ignored.
func createPaymentEventsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payment_events (
			id SERIAL PRIMARY KEY,
			event_id TEXT NOT NULL UNIQUE,
			aggregate_id TEXT NOT NULL,
			type TEXT NOT NULL,
			sequence INT NOT NULL DEFAULT 1,
			data JSONB,
			source_message_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating payment_events table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_events_source_message_id
		ON payment_events (source_message_id)
		WHERE source_message_id IS NOT NULL
	`)
	if err != nil {
		log.Printf("Error creating payment_events unique index: %v", err)
	}
	return err
}

// createOutboxTable creates the transactional outbox table.
func createOutboxTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payment_outbox (
			id SERIAL PRIMARY KEY,
			event_id TEXT NOT NULL UNIQUE,
			event_type TEXT NOT NULL,
			source TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			correlation_id TEXT,
			causation_id TEXT,
			version INT NOT NULL DEFAULT 1,
			destination TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			published_at TIMESTAMP,
			attempts INT NOT NULL DEFAULT 0,
			next_attempt_at TIMESTAMP,
			last_error TEXT,
			last_queue_message_id TEXT,
			claimed_by TEXT,
			claim_expires_at TIMESTAMP
		)
	`)
	if err != nil {
		log.Printf("Error creating payment_outbox table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_payment_outbox_due
		ON payment_outbox (created_at)
		WHERE published_at IS NULL
	`)
	if err != nil {
		log.Printf("Error creating payment_outbox due index: %v", err)
	}
	return err
}
