package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleFaculty    UserRole = "FACULTY"
	RoleStudent    UserRole = "STUDENT"
)

// Permission names granted to principals by the surrounding auth layer.
const (
	PermissionCourseEdit   = "course_edit"
	PermissionRosterExport = "roster_export"
)

// User represents an application user stored in the users table.
// Authentication itself happens outside this service; the record exists so
// principals can be resolved to students and faculty.
type User struct {
	ID         string    `db:"id" json:"id"`
	Email      string    `db:"email" json:"email"`
	FullName   string    `db:"full_name" json:"full_name"`
	Role       UserRole  `db:"role" json:"role"`
	StudentID  *string   `db:"student_id" json:"student_id,omitempty"`
	EmployeeID *string   `db:"employee_id" json:"employee_id,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
