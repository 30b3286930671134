package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name       string     `gorm:"size:100;not null" json:"name"`
	Email      string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Role       UserRole   `gorm:"size:20;default:'student'" json:"role"`
	IsActive   bool       `gorm:"default:true" json:"isActive"`
	IsOnline   bool       `gorm:"default:false" json:"isOnline"`
	LastSeen   *time.Time `json:"lastSeen"`
	LastActive *time.Time `json:"lastActive"`
	Country    string     `gorm:"size:100" json:"country"`
	State      string     `gorm:"size:100" json:"state"`
	ExamDate   *time.Time `json:"examDate"`
}

func (User) TableName() string {
	return "users"
}
