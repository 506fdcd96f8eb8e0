package model

// Roles are fixed; there is no role-change endpoint.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// AllRoles lists every role, in descending order of privilege
var AllRoles = []string{RoleAdmin, RoleManager, RoleStaff}

// Capability is a single permission code granted to a role
type Capability string

const (
	CapViewAllTasks       Capability = "tasks.read_all"
	CapCreateTask         Capability = "tasks.create"
	CapEditAllFields      Capability = "tasks.write_all"
	CapEditCompletedTask  Capability = "tasks.write_completed"
	CapDeleteTask         Capability = "tasks.delete"
	CapReopenTask         Capability = "tasks.reopen"
	CapAutoAssign         Capability = "tasks.auto_assign"
	CapWriteService       Capability = "services.write"
	CapDeleteService      Capability = "services.delete"
	CapCreateUser         Capability = "users.write"
	CapListUsers          Capability = "users.read"
	CapCreateAnnouncement Capability = "announcements.write"
	CapViewReports        Capability = "reports.read"
	CapViewAttendance     Capability = "attendance.read_all"
	CapViewAuditLog       Capability = "audit.read"
)

// AllCapabilities lists every capability code
var AllCapabilities = []Capability{
	CapViewAllTasks, CapCreateTask, CapEditAllFields, CapEditCompletedTask,
	CapDeleteTask, CapReopenTask, CapAutoAssign,
	CapWriteService, CapDeleteService,
	CapCreateUser, CapListUsers,
	CapCreateAnnouncement, CapViewReports, CapViewAttendance, CapViewAuditLog,
}

// rolePermissions is the capability table. Staff edit rights on own/shared
// tasks are not listed here because they depend on the task, not the role.
var rolePermissions = map[string][]Capability{
	RoleAdmin: {
		CapViewAllTasks, CapCreateTask, CapEditAllFields, CapEditCompletedTask,
		CapDeleteTask, CapReopenTask, CapAutoAssign,
		CapWriteService, CapDeleteService,
		CapCreateUser, CapListUsers,
		CapCreateAnnouncement, CapViewReports, CapViewAttendance, CapViewAuditLog,
	},
	RoleManager: {
		CapViewAllTasks, CapCreateTask, CapEditAllFields, CapEditCompletedTask,
		CapDeleteTask, CapReopenTask, CapAutoAssign,
		CapWriteService,
		CapListUsers,
		CapCreateAnnouncement, CapViewReports, CapViewAttendance, CapViewAuditLog,
	},
	RoleStaff: {
		CapCreateTask,
	},
}

// StaffEditableFields are the only task fields a staff member may change
var StaffEditableFields = []string{"status", "description", "paid_amount", "service_charge"}

func ValidRole(role string) bool {
	_, ok := rolePermissions[role]
	return ok
}

// Can reports whether role carries capability
func Can(role string, capability Capability) bool {
	for _, c := range rolePermissions[role] {
		if c == capability {
			return true
		}
	}
	return false
}

// Permissions returns a copy of the capability codes for role
func Permissions(role string) []string {
	caps := rolePermissions[role]
	codes := make([]string, 0, len(caps))
	for _, c := range caps {
		codes = append(codes, string(c))
	}
	return codes
}
