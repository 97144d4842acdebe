// Package ordersync contains the domain model for pushing storefront orders
// into the Odoo ERP.
//
// It holds the order as read from the storefront, the sync metadata the
// engine annotates onto it, the ERP wire schema, the activity trail entry
// and the ports (repositories, gateways) the application layer depends on.
package ordersync
