package storage

// SchemaVersion is the version recorded by Migrate
const SchemaVersion = 1

// Foreign keys deliberately omit ON DELETE CASCADE: the reconciler orders its
// deletes, and an out-of-order delete must fail loudly.

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS survey (
		survey_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS method_technique (
		method_technique_id INTEGER PRIMARY KEY AUTOINCREMENT,
		survey_id INTEGER NOT NULL REFERENCES survey(survey_id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS method_technique_attribute_qualitative (
		method_technique_attribute_qualitative_id INTEGER PRIMARY KEY AUTOINCREMENT,
		method_technique_id INTEGER NOT NULL REFERENCES method_technique(method_technique_id),
		method_lookup_attribute_qualitative_id INTEGER NOT NULL,
		method_lookup_attribute_qualitative_option_id INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS method_technique_attribute_quantitative (
		method_technique_attribute_quantitative_id INTEGER PRIMARY KEY AUTOINCREMENT,
		method_technique_id INTEGER NOT NULL REFERENCES method_technique(method_technique_id),
		method_lookup_attribute_quantitative_id INTEGER NOT NULL,
		value REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS survey_block (
		survey_block_id INTEGER PRIMARY KEY AUTOINCREMENT,
		survey_id INTEGER NOT NULL REFERENCES survey(survey_id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS survey_stratum (
		survey_stratum_id INTEGER PRIMARY KEY AUTOINCREMENT,
		survey_id INTEGER NOT NULL REFERENCES survey(survey_id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS survey_sample_site (
		survey_sample_site_id INTEGER PRIMARY KEY AUTOINCREMENT,
		survey_id INTEGER NOT NULL REFERENCES survey(survey_id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		geojson TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS survey_sample_method (
		survey_sample_method_id INTEGER PRIMARY KEY AUTOINCREMENT,
		survey_sample_site_id INTEGER NOT NULL REFERENCES survey_sample_site(survey_sample_site_id),
		method_technique_id INTEGER REFERENCES method_technique(method_technique_id),
		method_response_metric_id INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS survey_sample_period (
		survey_sample_period_id INTEGER PRIMARY KEY AUTOINCREMENT,
		survey_sample_method_id INTEGER NOT NULL REFERENCES survey_sample_method(survey_sample_method_id),
		start_date TEXT NOT NULL,
		start_time TEXT,
		end_date TEXT NOT NULL,
		end_time TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS survey_sample_block (
		survey_sample_block_id INTEGER PRIMARY KEY AUTOINCREMENT,
		survey_sample_site_id INTEGER NOT NULL REFERENCES survey_sample_site(survey_sample_site_id),
		survey_block_id INTEGER NOT NULL REFERENCES survey_block(survey_block_id),
		UNIQUE (survey_sample_site_id, survey_block_id)
	)`,
	`CREATE TABLE IF NOT EXISTS survey_sample_stratum (
		survey_sample_stratum_id INTEGER PRIMARY KEY AUTOINCREMENT,
		survey_sample_site_id INTEGER NOT NULL REFERENCES survey_sample_site(survey_sample_site_id),
		survey_stratum_id INTEGER NOT NULL REFERENCES survey_stratum(survey_stratum_id),
		UNIQUE (survey_sample_site_id, survey_stratum_id)
	)`,
	`CREATE TABLE IF NOT EXISTS observation (
		survey_observation_id INTEGER PRIMARY KEY AUTOINCREMENT,
		survey_id INTEGER NOT NULL REFERENCES survey(survey_id),
		survey_sample_site_id INTEGER REFERENCES survey_sample_site(survey_sample_site_id),
		survey_sample_method_id INTEGER REFERENCES survey_sample_method(survey_sample_method_id),
		survey_sample_period_id INTEGER REFERENCES survey_sample_period(survey_sample_period_id),
		itis_tsn INTEGER,
		count INTEGER NOT NULL DEFAULT 0,
		latitude REAL,
		longitude REAL,
		observation_date TEXT NOT NULL,
		observation_time TEXT
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS survey (
		survey_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS method_technique (
		method_technique_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		survey_id BIGINT NOT NULL REFERENCES survey(survey_id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS method_technique_attribute_qualitative (
		method_technique_attribute_qualitative_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		method_technique_id BIGINT NOT NULL REFERENCES method_technique(method_technique_id),
		method_lookup_attribute_qualitative_id BIGINT NOT NULL,
		method_lookup_attribute_qualitative_option_id BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS method_technique_attribute_quantitative (
		method_technique_attribute_quantitative_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		method_technique_id BIGINT NOT NULL REFERENCES method_technique(method_technique_id),
		method_lookup_attribute_quantitative_id BIGINT NOT NULL,
		value DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS survey_block (
		survey_block_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		survey_id BIGINT NOT NULL REFERENCES survey(survey_id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS survey_stratum (
		survey_stratum_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		survey_id BIGINT NOT NULL REFERENCES survey(survey_id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS survey_sample_site (
		survey_sample_site_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		survey_id BIGINT NOT NULL REFERENCES survey(survey_id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		geojson TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS survey_sample_method (
		survey_sample_method_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		survey_sample_site_id BIGINT NOT NULL REFERENCES survey_sample_site(survey_sample_site_id),
		method_technique_id BIGINT REFERENCES method_technique(method_technique_id),
		method_response_metric_id BIGINT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS survey_sample_period (
		survey_sample_period_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		survey_sample_method_id BIGINT NOT NULL REFERENCES survey_sample_method(survey_sample_method_id),
		start_date DATE NOT NULL,
		start_time TIME,
		end_date DATE NOT NULL,
		end_time TIME
	)`,
	`CREATE TABLE IF NOT EXISTS survey_sample_block (
		survey_sample_block_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		survey_sample_site_id BIGINT NOT NULL REFERENCES survey_sample_site(survey_sample_site_id),
		survey_block_id BIGINT NOT NULL REFERENCES survey_block(survey_block_id),
		UNIQUE (survey_sample_site_id, survey_block_id)
	)`,
	`CREATE TABLE IF NOT EXISTS survey_sample_stratum (
		survey_sample_stratum_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		survey_sample_site_id BIGINT NOT NULL REFERENCES survey_sample_site(survey_sample_site_id),
		survey_stratum_id BIGINT NOT NULL REFERENCES survey_stratum(survey_stratum_id),
		UNIQUE (survey_sample_site_id, survey_stratum_id)
	)`,
	`CREATE TABLE IF NOT EXISTS observation (
		survey_observation_id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
		survey_id BIGINT NOT NULL REFERENCES survey(survey_id),
		survey_sample_site_id BIGINT REFERENCES survey_sample_site(survey_sample_site_id),
		survey_sample_method_id BIGINT REFERENCES survey_sample_method(survey_sample_method_id),
		survey_sample_period_id BIGINT REFERENCES survey_sample_period(survey_sample_period_id),
		itis_tsn BIGINT,
		count INTEGER NOT NULL DEFAULT 0,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		observation_date DATE NOT NULL,
		observation_time TIME
	)`,
}

// indexes are identical in both dialects
var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_technique_survey ON method_technique(survey_id)`,
	`CREATE INDEX IF NOT EXISTS idx_qual_attr_technique ON method_technique_attribute_qualitative(method_technique_id)`,
	`CREATE INDEX IF NOT EXISTS idx_quant_attr_technique ON method_technique_attribute_quantitative(method_technique_id)`,
	`CREATE INDEX IF NOT EXISTS idx_block_survey ON survey_block(survey_id)`,
	`CREATE INDEX IF NOT EXISTS idx_stratum_survey ON survey_stratum(survey_id)`,
	`CREATE INDEX IF NOT EXISTS idx_site_survey ON survey_sample_site(survey_id)`,
	`CREATE INDEX IF NOT EXISTS idx_method_site ON survey_sample_method(survey_sample_site_id)`,
	`CREATE INDEX IF NOT EXISTS idx_period_method ON survey_sample_period(survey_sample_method_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sample_block_block ON survey_sample_block(survey_block_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sample_stratum_stratum ON survey_sample_stratum(survey_stratum_id)`,
	`CREATE INDEX IF NOT EXISTS idx_observation_survey ON observation(survey_id)`,
}

func withIndexes(tables []string) []string {
	out := make([]string, 0, len(tables)+len(indexes))
	out = append(out, tables...)
	return append(out, indexes...)
}
