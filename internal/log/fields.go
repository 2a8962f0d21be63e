package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldMonth         = "month"
	FieldTransactionID = "transaction_id"
	FieldCounterparty  = "counterparty"
	FieldAmount        = "amount"
	FieldCategory      = "category"
	FieldSubcategory   = "subcategory"
	FieldConfidence    = "confidence"
	FieldSource        = "source"
	FieldCount         = "count"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentStorage    = "storage"
	ComponentCategorize = "categorize"
	ComponentInsights   = "insights"
	ComponentAI         = "ai"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentExport     = "export"
	ComponentImport     = "import"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpList      = "list"
	OpDelete    = "delete"
	OpSuggest   = "suggest"
	OpReanalyze = "reanalyze"
	OpPurge     = "purge"
	OpExport    = "export"
	OpImport    = "import"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
