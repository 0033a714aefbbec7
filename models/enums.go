package models

// MovementKind classifies one row of a cost-pool chain.
type MovementKind string

const (
	MovementKindPurchase         MovementKind = "PUR"
	MovementKindSale             MovementKind = "SAL"
	MovementKindBeginningBalance MovementKind = "BEG"
	MovementKindActualCount      MovementKind = "CNT"
	MovementKindCostRevision     MovementKind = "REV"
)

func (k MovementKind) Valid() bool {
	switch k {
	case MovementKindPurchase, MovementKindSale, MovementKindBeginningBalance,
		MovementKindActualCount, MovementKindCostRevision:
		return true
	}
	return false
}

// AccountRole tags a journal line with its inventory-costing role at
// creation time, so COGS reconciliation never has to match account-number
// string prefixes.
type AccountRole string

const (
	AccountRoleNone           AccountRole = "none"
	AccountRoleCogs           AccountRole = "cogs"
	AccountRoleInventoryAsset AccountRole = "inventory_asset"
)

// InventoryEventKind identifies a domain event arriving from the AP/AR systems.
type InventoryEventKind string

const (
	InventoryEventPurchaseReceived InventoryEventKind = "PURCHASE_RECEIVED"
	InventoryEventSaleDelivered    InventoryEventKind = "SALE_DELIVERED"
	InventoryEventBeginningBalance InventoryEventKind = "BEGINNING_BALANCE"
	InventoryEventActualCount      InventoryEventKind = "ACTUAL_COUNT"
	InventoryEventCostRevision     InventoryEventKind = "COST_REVISION"
	InventoryEventMovementVoided   InventoryEventKind = "MOVEMENT_VOIDED"
)
