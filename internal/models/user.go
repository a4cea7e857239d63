package models

// Role is a marketplace role. Seekers post jobs, helpers apply to them.
type Role string

const (
	RoleSeeker Role = "seeker"
	RoleHelper Role = "helper"
)

type User struct {
	ID            string `json:"id"`
	Role          Role   `json:"role"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Verified      bool   `json:"verified"`
	CompletedJobs int    `json:"completedJobs"`
}
