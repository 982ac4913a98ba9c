package integration

// Operator-facing outcome messages
const (
	MsgInvalidOrderID          = "Invalid order ID"
	MsgOrderNotFound           = "Order not found"
	MsgOrderNotPaid            = "Order is not paid"
	MsgAutoSyncDisabled        = "Automatic sync is disabled"
	MsgSyncInProgress          = "A sync for this order is already in progress"
	MsgSettingsUnavailable     = "RepairShopr settings are incomplete or invalid"
	MsgNoPaymentMapping        = "No RepairShopr payment method mapped for this WooCommerce payment method."
	MsgCustomerFailed          = "Failed to create/find customer in RepairShopr."
	MsgInvoiceMissing          = "Could not find RepairShopr invoice for this order."
	MsgPaymentExists           = "Payment already exists for this invoice in RepairShopr."
	MsgPaymentMethodUnresolved = "Could not resolve RepairShopr payment method name."
	MsgPaymentApplied          = "Payment successfully applied in RepairShopr."
	MsgPaymentRejected         = "Failed to apply payment in RepairShopr. Response: "
	MsgPaymentError            = "Error sending payment to RepairShopr"
	MsgInvoiceExists           = "Invoice already exists in RepairShopr"
	MsgInvoiceCreated          = "Invoice created in RepairShopr"
	MsgInvoicePartial          = "Invoice created in RepairShopr with missing line items"
	MsgInvoiceFailed           = "Failed to create invoice in RepairShopr"
	MsgInvoiceLookupFailed     = "Failed to look up RepairShopr invoice"
	MsgNoLineItems             = "Order has no billable line items"
	MsgInvoiceNotFoundFmt      = "RepairShopr Invoice %s not found."
	MsgInvoiceTotalMissing     = "RepairShopr invoice has no total"
)

const (
	MsgOrderLoadFailed = "Failed to load order from WooCommerce"
	MsgLockFailed      = "Could not acquire the order sync lock"
)
