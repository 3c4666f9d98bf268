package permission

// LegacyAction is the retired numeric permission enum still present in old
// role exports and archived audit payloads.
type LegacyAction int

// Retired enum values. Renumbering is forbidden.
const (
	LegacyManageUsers LegacyAction = iota + 1
	LegacyManageRoles
	LegacyViewTasks
	LegacyAssignTasks
	LegacyClockAttendance
	LegacyManageAttendance
	LegacyManageOrders
	LegacyRecordPayments
	LegacyConfirmDeliveries
	LegacyViewAuditTrail
)

// FromLegacy maps a retired enum value to the current catalog action. The
// mapping is total: unknown values map to the empty Action, which fails
// IsValid and is rejected at the boundary. It is applied once when legacy
// data enters the system, never inside resolution.
func FromLegacy(l LegacyAction) Action {
	switch l {
	case LegacyManageUsers:
		return UserEdit
	case LegacyManageRoles:
		return RoleManage
	case LegacyViewTasks:
		return TaskView
	case LegacyAssignTasks:
		return TaskAssign
	case LegacyClockAttendance:
		return AttendanceClock
	case LegacyManageAttendance:
		return AttendanceManage
	case LegacyManageOrders:
		return OrderEdit
	case LegacyRecordPayments:
		return PaymentRecord
	case LegacyConfirmDeliveries:
		return DeliveryConfirm
	case LegacyViewAuditTrail:
		return AuditView
	default:
		return Action("")
	}
}
