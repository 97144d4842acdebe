package ordersync

// SyncStatus is the per-order sync status persisted on the order record
type SyncStatus string

const (
	// SyncStatusUnset means the order was never sent
	SyncStatusUnset   SyncStatus = ""
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// IsValid returns true if the status is one of the known values
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusUnset, SyncStatusSuccess, SyncStatusFailed:
		return true
	default:
		return false
	}
}

// SyncMetadata is the ERP annotation stored alongside an order.
// ERPOrderID is set once, on the first successful send, and never rewritten
// by update-mode sends.
type SyncMetadata struct {
	ERPOrderID     int64
	ERPOrderNumber string
	Status         SyncStatus
}

// HasERPOrder returns true when the order already exists in the ERP
func (m SyncMetadata) HasERPOrder() bool {
	return m.ERPOrderID > 0
}
