package models

import (
	"golang.org/x/crypto/bcrypt"
)

// User is a registered account. Email is the identity and never changes.
type User struct {
	Email    string `json:"email" gorm:"primaryKey"`
	Password []byte `json:"-" gorm:"not null"`
}

func (user *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return err
	}
	user.Password = hashedPassword
	return nil
}

func (user *User) ComparePassword(password string) error {
	return bcrypt.CompareHashAndPassword(user.Password, []byte(password))
}
