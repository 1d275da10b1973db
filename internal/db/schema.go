package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- GENERATION_JOB TABLE (durable mirror of the in-memory job registry)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS generation_job SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS artifact_type ON generation_job TYPE string;
    DEFINE FIELD IF NOT EXISTS request_text ON generation_job TYPE string;
    DEFINE FIELD IF NOT EXISTS options ON generation_job TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS status ON generation_job TYPE string
        ASSERT $value IN ['queued', 'running', 'completed', 'failed'];
    DEFINE FIELD IF NOT EXISTS result_artifact_id ON generation_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS result_version ON generation_job TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS error ON generation_job TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON generation_job TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON generation_job TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS generation_job_status ON generation_job FIELDS status;
    DEFINE INDEX IF NOT EXISTS generation_job_created ON generation_job FIELDS created_at;
`
