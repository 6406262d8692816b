package api

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"resumify/internal/auth"
)

var registerValidationsOnce sync.Once

// registerValidations 在 gin 默认校验器上注册自定义规则，进程内只执行一次。
func registerValidations() {
	registerValidationsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err := auth.RegisterValidations(v); err != nil {
			panic(err)
		}
	})
}

// loginForm 是登录表单。
type loginForm struct {
	Email    string `form:"email" binding:"required,max=254,email"`
	Password string `form:"password" binding:"required"`
	Next     string `form:"next"`
}

// bioForm 是 AI 简介生成请求。
type bioForm struct {
	Name       string `form:"name" binding:"required"`
	Profession string `form:"profession" binding:"required"`
	Skills     string `form:"skills"`
}

// resumeHeader 是简历表单中必须填写的部分，其余字段由 resume.DraftFromForm 解析。
type resumeHeader struct {
	Name       string `form:"name" binding:"required"`
	Profession string `form:"profession" binding:"required"`
}

// loginFormMessage 只对邮箱格式单独提示，其余错误一律按凭据无效处理。
func loginFormMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.StructField() == "Email" {
				return "Please enter a valid email address."
			}
		}
	}
	return invalidCredentialsMessage
}
