package log

// Common field names for structured logging.
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldCategory      = "category"
	FieldBudgetID      = "budget_id"
	FieldRecurringID   = "recurring_id"
	FieldPeriodKey     = "period_key"
	FieldAmount        = "amount"
	FieldCurrency      = "currency"
	FieldDate          = "date"
	FieldCount         = "count"
)

// Components defines standard component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentRecurring = "recurring"
	ComponentBudget    = "budget"
)
