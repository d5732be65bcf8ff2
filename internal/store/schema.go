package store

// Timestamps are TEXT in "2006-01-02 15:04:05" UTC; dates are "2006-01-02".
// Money columns are REAL. Uniqueness holds among live rows only, so a
// soft-deleted document or process number can be registered again.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS clients (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		name             TEXT NOT NULL,
		document         TEXT NOT NULL,
		contact          TEXT,
		address          TEXT,
		is_recurrent     INTEGER NOT NULL DEFAULT 0,
		recurrence_value REAL,
		recurrence_day   INTEGER,
		balance          REAL NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at       TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS processes (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id      INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		process_number TEXT NOT NULL,
		tribunal       TEXT,
		target         TEXT,
		description    TEXT,
		status         TEXT NOT NULL DEFAULT 'Ativo',
		value_charged  REAL NOT NULL DEFAULT 0,
		payment_method TEXT NOT NULL,
		created_at     TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at     TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS services (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id        INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		description      TEXT NOT NULL,
		value_charged    REAL NOT NULL DEFAULT 0,
		payment_method   TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'Ativo',
		em_conta_details TEXT,
		created_at       TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at       TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at       TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		process_id   INTEGER REFERENCES processes(id) ON DELETE CASCADE,
		service_id   INTEGER REFERENCES services(id) ON DELETE CASCADE,
		client_id    INTEGER REFERENCES clients(id) ON DELETE CASCADE,
		value_paid   REAL NOT NULL,
		status       TEXT NOT NULL DEFAULT 'Pago',
		payment_date TEXT,
		due_date     TEXT,
		created_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (process_id IS NULL OR service_id IS NULL)
	)`,
	`CREATE TABLE IF NOT EXISTS office_expenses (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		description  TEXT NOT NULL,
		amount       REAL NOT NULL,
		due_date     TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'Pendente',
		is_recurrent INTEGER NOT NULL DEFAULT 0,
		created_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at   TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		deleted_at   TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_clients_document ON clients(document) WHERE deleted_at IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_processes_number ON processes(process_number) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_clients_deleted_at ON clients(deleted_at)`,
	`CREATE INDEX IF NOT EXISTS idx_processes_client_id ON processes(client_id)`,
	`CREATE INDEX IF NOT EXISTS idx_processes_deleted_at ON processes(deleted_at)`,
	`CREATE INDEX IF NOT EXISTS idx_processes_payment_method ON processes(payment_method)`,
	`CREATE INDEX IF NOT EXISTS idx_services_client_id ON services(client_id)`,
	`CREATE INDEX IF NOT EXISTS idx_services_deleted_at ON services(deleted_at)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_process_id ON payments(process_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_service_id ON payments(service_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_client_id ON payments(client_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_due_date ON payments(due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_office_expenses_deleted_at ON office_expenses(deleted_at)`,
	`CREATE INDEX IF NOT EXISTS idx_office_expenses_status ON office_expenses(status)`,
	`CREATE INDEX IF NOT EXISTS idx_office_expenses_due_date ON office_expenses(due_date)`,
}
