package sqlstore

// Dialect holds the statements for one SQL backend. Placeholders follow the
// driver: $n for pgx, ? for gosnowflake.
type Dialect struct {
	Name string

	// lockBundle serializes writers of one bundle, including the first
	// insert where FOR UPDATE has no row to lock. Empty skips it.
	lockBundle      string
	selectBundle    string
	selectForUpdate string
	selectTenant    string
	upsertBundle    string
	deleteBundle    string
	createBundleDDL string

	insertAudit    string
	selectAudit    string
	createAuditDDL string
}

var PostgresDialect = Dialect{
	Name: "postgres",

	lockBundle: `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`,

	selectBundle: `SELECT fields, updated_at FROM credential_bundles
		WHERE tenant_id = $1 AND integration_id = $2`,
	selectForUpdate: `SELECT fields, updated_at FROM credential_bundles
		WHERE tenant_id = $1 AND integration_id = $2 FOR UPDATE`,
	selectTenant: `SELECT integration_id, fields, updated_at FROM credential_bundles
		WHERE tenant_id = $1 ORDER BY integration_id`,
	upsertBundle: `INSERT INTO credential_bundles (tenant_id, integration_id, fields, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, integration_id)
		DO UPDATE SET fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at`,
	deleteBundle: `DELETE FROM credential_bundles WHERE tenant_id = $1 AND integration_id = $2`,

	insertAudit: `INSERT INTO audit_events (id, tenant_id, actor, action, target, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
	selectAudit: `SELECT id, actor, action, target, status, metadata, created_at FROM audit_events
		WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`,
}

// SnowflakeDialect keeps bundles in the warehouse itself. Snowflake has no
// row locks, so the merge relies on the surrounding transaction.
var SnowflakeDialect = Dialect{
	Name: "snowflake",

	selectBundle: `SELECT TO_JSON(FIELDS), UPDATED_AT FROM CREDENTIAL_BUNDLES
		WHERE TENANT_ID = ? AND INTEGRATION_ID = ?`,
	selectForUpdate: `SELECT TO_JSON(FIELDS), UPDATED_AT FROM CREDENTIAL_BUNDLES
		WHERE TENANT_ID = ? AND INTEGRATION_ID = ?`,
	selectTenant: `SELECT INTEGRATION_ID, TO_JSON(FIELDS), UPDATED_AT FROM CREDENTIAL_BUNDLES
		WHERE TENANT_ID = ? ORDER BY INTEGRATION_ID`,
	upsertBundle: `MERGE INTO CREDENTIAL_BUNDLES AS target
		USING (SELECT ? AS TENANT_ID, ? AS INTEGRATION_ID, PARSE_JSON(?) AS FIELDS, ? AS UPDATED_AT) AS source
		ON target.TENANT_ID = source.TENANT_ID AND target.INTEGRATION_ID = source.INTEGRATION_ID
		WHEN MATCHED THEN UPDATE SET FIELDS = source.FIELDS, UPDATED_AT = source.UPDATED_AT
		WHEN NOT MATCHED THEN INSERT (TENANT_ID, INTEGRATION_ID, FIELDS, UPDATED_AT)
			VALUES (source.TENANT_ID, source.INTEGRATION_ID, source.FIELDS, source.UPDATED_AT)`,
	deleteBundle: `DELETE FROM CREDENTIAL_BUNDLES WHERE TENANT_ID = ? AND INTEGRATION_ID = ?`,
	createBundleDDL: `CREATE TABLE IF NOT EXISTS CREDENTIAL_BUNDLES (
		TENANT_ID STRING NOT NULL,
		INTEGRATION_ID STRING NOT NULL,
		FIELDS VARIANT,
		UPDATED_AT TIMESTAMP_TZ,
		PRIMARY KEY (TENANT_ID, INTEGRATION_ID)
	)`,

	insertAudit: `INSERT INTO AUDIT_EVENTS (ID, TENANT_ID, ACTOR, ACTION, TARGET, STATUS, METADATA, CREATED_AT)
		SELECT ?, ?, ?, ?, ?, ?, PARSE_JSON(?), ?`,
	selectAudit: `SELECT ID, ACTOR, ACTION, TARGET, STATUS, TO_JSON(METADATA), CREATED_AT FROM AUDIT_EVENTS
		WHERE TENANT_ID = ? ORDER BY CREATED_AT DESC LIMIT ?`,
	createAuditDDL: `CREATE TABLE IF NOT EXISTS AUDIT_EVENTS (
		ID STRING NOT NULL PRIMARY KEY,
		TENANT_ID STRING NOT NULL,
		ACTOR STRING NOT NULL,
		ACTION STRING NOT NULL,
		TARGET STRING NOT NULL,
		STATUS STRING NOT NULL,
		METADATA VARIANT,
		CREATED_AT TIMESTAMP_TZ
	)`,
}
