package domain

import "time"

// User represents an account in the system: an admin, an instructor, or a
// student. ClassName groups students into a class roster; instructors carry
// the name of the class they teach, admins leave it empty.
type User struct {
	ID           string
	Username     string
	FullName     string
	Email        string
	PasswordHash string
	Role         Role
	ClassName    string
	AvatarKey    string
	Locked       bool
	FailedLogins int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
