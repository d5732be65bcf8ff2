package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/lawoffice/internal/store"
	"github.com/matthewbaird/lawoffice/internal/store/storetest"
)

func countClients(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM clients`).Scan(&n))
	return n
}

func TestMigrate_Idempotent(t *testing.T) {
	db := storetest.Open(t)
	require.NoError(t, store.Migrate(context.Background(), db))
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := storetest.Open(t)
	err := store.WithTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO clients (name, document) VALUES ('Ana', '123')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countClients(t, db))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := storetest.Open(t)
	boom := errors.New("boom")
	err := store.WithTx(context.Background(), db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO clients (name, document) VALUES ('Ana', '123')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countClients(t, db))
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := storetest.Open(t)
	assert.Panics(t, func() {
		_ = store.WithTx(context.Background(), db, func(tx *sql.Tx) error {
			_, _ = tx.Exec(`INSERT INTO clients (name, document) VALUES ('Ana', '123')`)
			panic("kaboom")
		})
	})
	assert.Equal(t, 0, countClients(t, db))
}

func TestSchema_PaymentLinksAreExclusive(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO clients (id, name, document) VALUES (1, 'Ana', '123')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO processes (id, client_id, process_number, payment_method) VALUES (1, 1, 'P-1', 'pix')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO services (id, client_id, description, payment_method) VALUES (1, 1, 'Consulta', 'pix')`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO payments (process_id, service_id, value_paid) VALUES (1, 1, 10)`)
	assert.Error(t, err)
}

func TestSchema_UniqueAmongLiveRows(t *testing.T) {
	db := storetest.Open(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO clients (id, name, document) VALUES (1, 'Ana', '123')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO clients (name, document) VALUES ('Outra', '123')`)
	assert.Error(t, err, "duplicate live document")

	_, err = db.ExecContext(ctx, `INSERT INTO processes (id, client_id, process_number, payment_method) VALUES (1, 1, 'P-1', 'pix')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO processes (client_id, process_number, payment_method) VALUES (1, 'P-1', 'pix')`)
	assert.Error(t, err, "duplicate live process number")

	_, err = db.ExecContext(ctx, `UPDATE processes SET deleted_at = CURRENT_TIMESTAMP WHERE id = 1`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `UPDATE clients SET deleted_at = CURRENT_TIMESTAMP WHERE id = 1`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO clients (id, name, document) VALUES (2, 'Ana', '123')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO processes (client_id, process_number, payment_method) VALUES (2, 'P-1', 'pix')`)
	require.NoError(t, err)
}
