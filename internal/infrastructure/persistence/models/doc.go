// Package models contains the GORM rows of the storefront order tables.
// Rows stay separate from the ordersync domain types; ToDomain maps them.
package models
