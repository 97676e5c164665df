package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// OrderStatus is the forward-only order workflow.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "New"
	OrderStatusPreparing OrderStatus = "Preparing"
	OrderStatusReady     OrderStatus = "Ready"
)

// OrderStatuses lists every status in workflow order.
var OrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusPreparing,
	OrderStatusReady,
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusPreparing, OrderStatusReady:
		return true
	}
	return false
}

// Next returns the status that follows s, or false when s is terminal or unknown.
func (s OrderStatus) Next() (OrderStatus, bool) {
	switch s {
	case OrderStatusNew:
		return OrderStatusPreparing, true
	case OrderStatusPreparing:
		return OrderStatusReady, true
	}
	return "", false
}

// ── Group B: Realtime change operations (TG_OP from the orders trigger) ──

const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// ── Group C: Configurable labels (no DB constraint) ──

// StatusFilterAll is the list filter that keeps every order.
const StatusFilterAll = "All"

const (
	RefreshPolicyFull  = "full"
	RefreshPolicyPatch = "patch"
)

const (
	RealtimeDriverPostgres = "postgres"
	RealtimeDriverRedis    = "redis"
)
