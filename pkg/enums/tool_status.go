package enums

// ToolStatus is the listing state of a tool.
type ToolStatus string

const (
	ToolStatusDraft    ToolStatus = "draft"
	ToolStatusActive   ToolStatus = "active"
	ToolStatusSold     ToolStatus = "sold"
	ToolStatusArchived ToolStatus = "archived"
)

// Purchasable reports whether a tool in this state can be added to a cart.
func (s ToolStatus) Purchasable() bool {
	return s == ToolStatusActive
}
