package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is either a learner or an administrator account, told apart by Role.
type User struct {
	gorm.Model
	FullName   string     `json:"fullName" gorm:"not null"`
	Email      string     `json:"email" gorm:"size:191;not null;uniqueIndex:idx_user_email_role"`
	Role       string     `json:"role" gorm:"size:16;default:'user';uniqueIndex:idx_user_email_role"`
	Password   string     `json:"-" gorm:"not null"`
	Phone      string     `json:"phone" gorm:"default:''"`
	Address    string     `json:"address" gorm:"default:''"`
	CourseName string     `json:"courseName" gorm:"default:''"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
	IsActive   bool       `json:"isActive" gorm:"default:true"`
}
