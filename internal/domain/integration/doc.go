// Package integration contains the billing integration bounded context.
// It keeps storefront orders and their invoices/payments on the remote billing
// platform in agreement.
//
// Key concepts:
//   - Order: read-only storefront order (totals, contacts, line items, fees)
//   - RemoteCustomer, RemoteInvoice, RemotePayment: typed views of billing records
//   - SyncSettings: immutable configuration snapshot taken once per operation
//   - Reconciliation: cent-accurate line item pricing and rounding correction
//
// Design Pattern: Ports & Adapters
//   - Ports (OrderSource, BillingGateway, repositories) are defined here
//   - Adapters (implementations) are in the infrastructure layer
package integration
