package models

// Intent is the classified action a command represents. Values come from the
// upstream language interpreter verbatim, including the historical spelling
// of CREATE_FULLFILLMENT.
type Intent string

const (
	IntentCreateSalesOrder  Intent = "CREATE_SALES_ORDER"
	IntentCreateFulfillment Intent = "CREATE_FULLFILLMENT"
	IntentCreateInvoice     Intent = "CREATE_INVOICE"
	IntentRecordPayment     Intent = "RECORD_PAYMENT"
	IntentCheckInventory    Intent = "CHECK_INVENTORY"
	IntentStatusCheck       Intent = "STATUS_CHECK"
	IntentUnknown           Intent = "UNKNOWN"
)

type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "PENDING"
	OrderStatusDelivered     OrderStatus = "DELIVERED"
	OrderStatusInvoiced      OrderStatus = "INVOICED"
	OrderStatusPartiallyPaid OrderStatus = "PARTIALLY_PAID"
	OrderStatusPaid          OrderStatus = "PAID"
)

type PartyRole string

const (
	PartyRoleCustomer PartyRole = "CUSTOMER"
	PartyRoleVendor   PartyRole = "VENDOR"
)

// DisplayNumberPrefix forms the human-facing order reference, "SO-" + sequence.
const DisplayNumberPrefix = "SO-"
