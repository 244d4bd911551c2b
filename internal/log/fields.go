package log

import (
	"maps"
	"slices"
)

// Common field names for structured logging
const (
	FieldComponent       = "component"
	FieldRequestID       = "request_id"
	FieldClientIP        = "client_ip"
	FieldMethod          = "method"
	FieldPath            = "path"
	FieldQuery           = "query"
	FieldStatusCode      = "status_code"
	FieldDuration        = "duration_ms"
	FieldUserAgent       = "user_agent"
	FieldReferer         = "referer"
	FieldSuccess         = "success"
	FieldError           = "error"
	FieldErrorType       = "error_type"
	FieldOperation       = "operation"
	FieldPredictionID    = "prediction_id"
	FieldMinistry        = "ministry"
	FieldPriorityLevel   = "priority_level"
	FieldPredictedBudget = "predicted_budget"
	FieldExpectedBudget  = "expected_budget"
	FieldReasons         = "reasons"
	FieldBatchSize       = "batch_size"
	FieldRows            = "rows"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentPredict   = "predict"
	ComponentModel     = "model"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentGenerator = "generator"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpPredict  = "predict"
	OpExplain  = "explain"
	OpRead     = "read"
	OpList     = "list"
	OpSave     = "save"
	OpSync     = "sync"
	OpGenerate = "generate"
	OpParse    = "parse"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeUnavailable   = "unavailable_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithClientIP adds client IP field
func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds error and error type fields
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPrediction adds the fields identifying a served prediction.
// expected is omitted when nil.
func (f LogFields) WithPrediction(id, ministry, priority string, predicted float64, expected *float64) LogFields {
	f[FieldPredictionID] = id
	f[FieldMinistry] = ministry
	f[FieldPriorityLevel] = priority
	f[FieldPredictedBudget] = predicted
	if expected != nil {
		f[FieldExpectedBudget] = *expected
	}
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice flattens the fields into slog key/value pairs, sorted by key.
// The component is owned by Logger and is never taken from fields.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for _, k := range slices.Sorted(maps.Keys(f)) {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, f[k])
	}
	return slice
}
