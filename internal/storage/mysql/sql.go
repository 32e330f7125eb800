package mysql

const listHotelsSQL = `
SELECT id, COALESCE(name, '')
FROM hotels
ORDER BY id
`

// Merge upsert: NULL parameters keep the stored value.
const markEntrySQL = `
INSERT INTO external_feedback_queue
  (id, provider, external_id, hotel_id, hotel_name, status, processed_at, error, import_id)
VALUES
  (?, ?, ?, ?, ?, COALESCE(?, 'processed'), ?, ?, ?)
ON DUPLICATE KEY UPDATE
  hotel_id     = COALESCE(VALUES(hotel_id), external_feedback_queue.hotel_id),
  hotel_name   = COALESCE(VALUES(hotel_name), external_feedback_queue.hotel_name),
  status       = COALESCE(?, external_feedback_queue.status),
  processed_at = COALESCE(VALUES(processed_at), external_feedback_queue.processed_at),
  error        = COALESCE(VALUES(error), external_feedback_queue.error),
  import_id    = COALESCE(VALUES(import_id), external_feedback_queue.import_id)
`

const listEntriesSQL = `
SELECT provider, external_id, hotel_id, hotel_name, status, processed_at, error, import_id
FROM external_feedback_queue
WHERE provider = ?
`

const saveBatchSQL = `
INSERT INTO analyses
  (hotel_id, import_id, hotel_name, import_date, data, analysis, ledger_applied)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  hotel_name     = VALUES(hotel_name),
  import_date    = VALUES(import_date),
  data           = VALUES(data),
  analysis       = VALUES(analysis),
  ledger_applied = VALUES(ledger_applied)
`

const unappliedBatchesSQL = `
SELECT hotel_id, import_id, COALESCE(hotel_name, ''), import_date, data, analysis
FROM analyses
WHERE ledger_applied = 0
ORDER BY import_date
`

const markBatchAppliedSQL = `
UPDATE analyses SET ledger_applied = 1
WHERE hotel_id = ? AND import_id = ?
`

const batchExistsSQL = `
SELECT 1 FROM analyses WHERE hotel_id = ? AND import_id = ?
`
