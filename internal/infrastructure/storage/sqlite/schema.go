package sqlite

// schema bootstraps the local store. Money columns are TEXT so decimal
// values round-trip exactly; timestamps are DATETIME so the driver returns
// time.Time.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS clients (
		id          TEXT PRIMARY KEY,
		org_id      TEXT NOT NULL,
		name        TEXT NOT NULL,
		email       TEXT,
		phone       TEXT,
		address     TEXT,
		vat_number  TEXT,
		notes       TEXT,
		created_by  TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL,
		deleted_at  DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_clients_org_updated ON clients (org_id, updated_at DESC)`,

	`CREATE TABLE IF NOT EXISTS quotes (
		id          TEXT PRIMARY KEY,
		org_id      TEXT NOT NULL,
		client_id   TEXT NOT NULL,
		number      TEXT NOT NULL,
		status      TEXT NOT NULL,
		issue_date  DATETIME NOT NULL,
		valid_until DATETIME,
		notes       TEXT,
		subtotal    TEXT NOT NULL DEFAULT '0',
		tax_total   TEXT NOT NULL DEFAULT '0',
		total       TEXT NOT NULL DEFAULT '0',
		created_by  TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL,
		deleted_at  DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_org_updated ON quotes (org_id, updated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_quotes_client ON quotes (client_id)`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id          TEXT PRIMARY KEY,
		org_id      TEXT NOT NULL,
		client_id   TEXT NOT NULL,
		number      TEXT NOT NULL,
		status      TEXT NOT NULL,
		issue_date  DATETIME NOT NULL,
		due_date    DATETIME,
		notes       TEXT,
		subtotal    TEXT NOT NULL DEFAULT '0',
		tax_total   TEXT NOT NULL DEFAULT '0',
		total       TEXT NOT NULL DEFAULT '0',
		paid_total  TEXT NOT NULL DEFAULT '0',
		currency    TEXT NOT NULL DEFAULT 'EUR',
		created_by  TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL,
		deleted_at  DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_org_updated ON invoices (org_id, updated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_client ON invoices (client_id)`,

	`CREATE TABLE IF NOT EXISTS line_items (
		id          TEXT PRIMARY KEY,
		org_id      TEXT NOT NULL,
		parent_type TEXT NOT NULL,
		parent_id   TEXT NOT NULL,
		label       TEXT NOT NULL,
		quantity    TEXT NOT NULL,
		unit_price  TEXT NOT NULL,
		tax_rate    TEXT NOT NULL,
		line_total  TEXT NOT NULL,
		position    INTEGER NOT NULL DEFAULT 0,
		created_by  TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL,
		deleted_at  DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_line_items_parent ON line_items (parent_type, parent_id, position)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id          TEXT PRIMARY KEY,
		org_id      TEXT NOT NULL,
		invoice_id  TEXT NOT NULL,
		amount      TEXT NOT NULL,
		method      TEXT NOT NULL,
		paid_at     DATETIME NOT NULL,
		reference   TEXT,
		notes       TEXT,
		created_by  TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL,
		updated_at  DATETIME NOT NULL,
		deleted_at  DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments (invoice_id, paid_at)`,

	`CREATE TABLE IF NOT EXISTS numbering_state (
		org_id      TEXT NOT NULL,
		kind        TEXT NOT NULL,
		prefix      TEXT NOT NULL,
		next_number INTEGER NOT NULL,
		end_number  INTEGER NOT NULL,
		updated_at  DATETIME NOT NULL,
		PRIMARY KEY (org_id, kind)
	)`,

	`CREATE TABLE IF NOT EXISTS sys_outbox (
		id          TEXT PRIMARY KEY,
		entity_kind TEXT NOT NULL,
		entity_id   TEXT NOT NULL,
		op          TEXT NOT NULL,
		org_id      TEXT NOT NULL,
		ts          DATETIME NOT NULL,
		payload     TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending',
		created_at  DATETIME NOT NULL,
		sent_at     DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sys_outbox_status ON sys_outbox (status)`,

	`CREATE TABLE IF NOT EXISTS sys_audit (
		id                  TEXT PRIMARY KEY,
		entity_kind         TEXT NOT NULL,
		entity_id           TEXT NOT NULL,
		action              TEXT NOT NULL,
		org_id              TEXT NOT NULL,
		user_id             TEXT NOT NULL DEFAULT '',
		metadata            TEXT,
		metadata_compressed BLOB,
		compression_algo    TEXT NOT NULL DEFAULT 'none',
		created_at          DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sys_audit_entity ON sys_audit (entity_kind, entity_id, created_at)`,
}
