package auth

import (
	"errors"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// PasswordStrengthTag 是口令强度规则在 binding 标签中的名字。
const PasswordStrengthTag = "password_strength"

const (
	firstNameMessage = "First name must be between 2 and 30 characters."
	lastNameMessage  = "Last name must be between 2 and 30 characters."
	emailMessage     = "Please enter a valid email address."
	passwordMessage  = "Password must be at least 8 characters and include uppercase, lowercase and a digit."
	confirmMessage   = "Passwords must match."
	invalidMessage   = "The form could not be read. Please try again."
)

// Registration 是注册表单提交的字段；binding 标签与 gin 的表单绑定共用。
type Registration struct {
	FirstName       string `form:"first_name" binding:"required,min=2,max=30"`
	LastName        string `form:"last_name" binding:"required,min=2,max=30"`
	Email           string `form:"email" binding:"required,max=254,excludesall='\";,excludes=--,excludes=/*,excludes=*/,email"`
	Password        string `form:"password" binding:"required,min=8,password_strength"`
	ConfirmPassword string `form:"confirm_password" binding:"required,eqfield=Password"`
}

var fieldMessages = map[string]string{
	"FirstName":       firstNameMessage,
	"LastName":        lastNameMessage,
	"Email":           emailMessage,
	"Password":        passwordMessage,
	"ConfirmPassword": confirmMessage,
}

var (
	standaloneOnce     sync.Once
	standaloneValidate *validator.Validate
)

// RegisterValidations 在 v 上注册注册表单用到的自定义规则。
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation(PasswordStrengthTag, func(fl validator.FieldLevel) bool {
		return CheckPasswordStrength(fl.Field().String()) == nil
	})
}

// formValidator 返回不经过 gin 时使用的校验器（管理命令等）。
func formValidator() *validator.Validate {
	standaloneOnce.Do(func() {
		v := validator.New()
		v.SetTagName("binding")
		if err := RegisterValidations(v); err != nil {
			panic(err)
		}
		standaloneValidate = v
	})
	return standaloneValidate
}

// Normalize 去除首尾空白并将邮箱转为小写。
func (r *Registration) Normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// Validate 返回所有面向用户的校验错误，为空表示通过。
func (r Registration) Validate() []string {
	return ValidationMessages(formValidator().Struct(r))
}

// ValidationMessages 把表单绑定错误转换为逐字段的提示，每个字段最多一条。
func ValidationMessages(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{invalidMessage}
	}
	var msgs []string
	seen := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.StructField()]
		if !ok || seen[msg] {
			continue
		}
		seen[msg] = true
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return []string{invalidMessage}
	}
	return msgs
}

// Username 由名与姓组成：first.last（小写）。
func (r Registration) Username() string {
	return strings.ToLower(r.FirstName + "." + r.LastName)
}
