package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_block_xp",
			UpSQL:   migration001Up,
		},
		{
			Version: 2,
			Name:    "create_host_files_and_capabilities",
			UpSQL:   migration002Up,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PLUGIN TABLES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Experience points per user and course
CREATE TABLE IF NOT EXISTS block_xp (
    id BIGSERIAL PRIMARY KEY,
    courseid BIGINT NOT NULL,
    userid BIGINT NOT NULL,
    xp BIGINT NOT NULL DEFAULT 0,
    lvl INTEGER NOT NULL DEFAULT 1,
    UNIQUE (courseid, userid)
);

-- Per-course plugin settings
CREATE TABLE IF NOT EXISTS block_xp_config (
    id BIGSERIAL PRIMARY KEY,
    courseid BIGINT NOT NULL UNIQUE,
    enabled SMALLINT NOT NULL DEFAULT 1,
    levels INTEGER NOT NULL DEFAULT 10,
    enableladder SMALLINT NOT NULL DEFAULT 1,
    lastlogpurge BIGINT NOT NULL DEFAULT 0
);

-- Rules giving points to events
CREATE TABLE IF NOT EXISTS block_xp_filters (
    id BIGSERIAL PRIMARY KEY,
    courseid BIGINT NOT NULL,
    ruledata TEXT,
    points INTEGER NOT NULL DEFAULT 0,
    sortorder INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_block_xp_filters_courseid ON block_xp_filters(courseid);

-- Events that earned points
CREATE TABLE IF NOT EXISTS block_xp_log (
    id BIGSERIAL PRIMARY KEY,
    courseid BIGINT NOT NULL,
    userid BIGINT NOT NULL,
    eventname VARCHAR(255) NOT NULL,
    xp INTEGER NOT NULL DEFAULT 0,
    time BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_block_xp_log_courseid_userid ON block_xp_log(courseid, userid);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: HOST FILES, CONTEXTS AND CAPABILITY GRANTS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS files (
    id BIGSERIAL PRIMARY KEY,
    contenthash VARCHAR(40) NOT NULL,
    contextid BIGINT NOT NULL,
    component VARCHAR(100) NOT NULL,
    filearea VARCHAR(50) NOT NULL,
    itemid BIGINT NOT NULL DEFAULT 0,
    filepath VARCHAR(255) NOT NULL DEFAULT '/',
    filename VARCHAR(255) NOT NULL,
    filesize BIGINT NOT NULL DEFAULT 0,
    timecreated BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_files_area ON files(contextid, component, filearea, itemid);

-- Context tree; path lists ancestor ids from the system context, e.g. /1/3/15
CREATE TABLE IF NOT EXISTS context (
    id BIGINT PRIMARY KEY,
    contextlevel INTEGER NOT NULL,
    instanceid BIGINT NOT NULL,
    path VARCHAR(255) NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_context_instance ON context(contextlevel, instanceid);

CREATE TABLE IF NOT EXISTS capability_grants (
    userid BIGINT NOT NULL,
    contextid BIGINT NOT NULL,
    capability VARCHAR(255) NOT NULL,
    permission INTEGER NOT NULL,
    PRIMARY KEY (userid, contextid, capability),
    CONSTRAINT valid_permission CHECK (permission IN (-1000, -1, 0, 1))
);
`
