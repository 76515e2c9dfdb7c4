package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldOwner       = "owner"
	FieldTxnID       = "transaction_id"
	FieldTxnTitle    = "transaction_title"
	FieldTxnType     = "transaction_type"
	FieldAmount      = "amount"
	FieldCategory    = "category"
	FieldEpoch       = "epoch"
	FieldRevision    = "revision"
	FieldCount       = "count"
	FieldYear        = "year"
	FieldMonth       = "month"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentRemote  = "remote"
	ComponentFeed    = "feed"
	ComponentWorker  = "worker"
	ComponentCache   = "cache"
	ComponentBackend = "backend"
)
