// Package permission defines the closed catalog of actions the authorization
// engine understands. The catalog is immutable at runtime; adding an action is
// a deploy-time change shipped together with a role migration.
package permission

// Action identifies one allowed operation on one resource category. Call
// sites reference the constants below, never free-form strings, so an invalid
// action is a compile error rather than a silent always-false check.
type Action string

// Core platform actions.
const (
	UserView   Action = "user.view"
	UserCreate Action = "user.create"
	UserEdit   Action = "user.edit"
	UserDelete Action = "user.delete"

	RoleView   Action = "role.view"
	RoleManage Action = "role.manage"
)

// Workforce actions.
const (
	TaskView   Action = "task.view"
	TaskCreate Action = "task.create"
	TaskAssign Action = "task.assign"
	TaskEdit   Action = "task.edit"
	TaskDelete Action = "task.delete"

	AttendanceView   Action = "attendance.view"
	AttendanceClock  Action = "attendance.clock"
	AttendanceManage Action = "attendance.manage"
)

// Sales and fulfilment actions.
const (
	OrderView    Action = "order.view"
	OrderCreate  Action = "order.create"
	OrderEdit    Action = "order.edit"
	OrderApprove Action = "order.approve"
	OrderCancel  Action = "order.cancel"

	QuotationView    Action = "quotation.view"
	QuotationCreate  Action = "quotation.create"
	QuotationApprove Action = "quotation.approve"

	PaymentView   Action = "payment.view"
	PaymentRecord Action = "payment.record"

	DeliveryView    Action = "delivery.view"
	DeliveryConfirm Action = "delivery.confirm"
)

// Compliance actions.
const (
	AuditView Action = "audit.view"
)

// Definition describes a catalog entry as a category/resource/verb triple.
type Definition struct {
	Action      Action `json:"action"`
	Category    string `json:"category"`
	Resource    string `json:"resource"`
	Verb        string `json:"verb"`
	Description string `json:"description"`
}

var catalog = []Definition{
	{UserView, "core", "user", "view", "View staff accounts"},
	{UserCreate, "core", "user", "create", "Create staff accounts"},
	{UserEdit, "core", "user", "edit", "Edit staff accounts"},
	{UserDelete, "core", "user", "delete", "Deactivate staff accounts"},
	{RoleView, "core", "role", "view", "View roles and their permissions"},
	{RoleManage, "core", "role", "manage", "Create roles and edit permission sets"},
	{TaskView, "workforce", "task", "view", "View field tasks"},
	{TaskCreate, "workforce", "task", "create", "Create field tasks"},
	{TaskAssign, "workforce", "task", "assign", "Assign tasks to staff"},
	{TaskEdit, "workforce", "task", "edit", "Edit field tasks"},
	{TaskDelete, "workforce", "task", "delete", "Delete field tasks"},
	{AttendanceView, "workforce", "attendance", "view", "View attendance records"},
	{AttendanceClock, "workforce", "attendance", "clock", "Clock in and out"},
	{AttendanceManage, "workforce", "attendance", "manage", "Correct attendance records"},
	{OrderView, "sales", "order", "view", "View orders"},
	{OrderCreate, "sales", "order", "create", "Create orders"},
	{OrderEdit, "sales", "order", "edit", "Edit orders"},
	{OrderApprove, "sales", "order", "approve", "Approve orders"},
	{OrderCancel, "sales", "order", "cancel", "Cancel orders"},
	{QuotationView, "sales", "quotation", "view", "View quotations"},
	{QuotationCreate, "sales", "quotation", "create", "Create quotations"},
	{QuotationApprove, "sales", "quotation", "approve", "Approve quotations"},
	{PaymentView, "finance", "payment", "view", "View recorded payments"},
	{PaymentRecord, "finance", "payment", "record", "Record payments"},
	{DeliveryView, "delivery", "delivery", "view", "View delivery orders"},
	{DeliveryConfirm, "delivery", "delivery", "confirm", "Confirm deliveries"},
	{AuditView, "compliance", "audit", "view", "Read the audit log"},
}

var catalogIndex = func() map[Action]Definition {
	idx := make(map[Action]Definition, len(catalog))
	for _, def := range catalog {
		idx[def.Action] = def
	}
	return idx
}()

// Catalog returns the ordered sequence of catalog definitions.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Actions returns every catalog action in catalog order.
func Actions() []Action {
	out := make([]Action, len(catalog))
	for i, def := range catalog {
		out[i] = def.Action
	}
	return out
}

// IsValid reports whether the action exists in the catalog.
func IsValid(a Action) bool {
	_, ok := catalogIndex[a]
	return ok
}

// Lookup returns the definition for an action.
func Lookup(a Action) (Definition, bool) {
	def, ok := catalogIndex[a]
	return def, ok
}

// String implements fmt.Stringer; the string form is the stable wire value
// persisted in roles and audit entries. Renaming requires a migration.
func (a Action) String() string { return string(a) }
