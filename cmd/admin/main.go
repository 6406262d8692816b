package main

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"resumify/internal/auth"
	"resumify/internal/billing"
	"resumify/internal/config"
	"resumify/internal/database"
)

func main() {
	var (
		email = flag.String("email", "", "账号邮箱（必填）")
		first = flag.String("first", "", "名（必填）")
		last  = flag.String("last", "", "姓（必填）")
		plan  = flag.String("plan", "free", "套餐：free、pro 或 ultimate")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	password, err := generateRandomPassword(18)
	if err != nil {
		log.Fatalf("generate password: %v", err)
	}

	reg := auth.Registration{
		FirstName:       *first,
		LastName:        *last,
		Email:           *email,
		Password:        password,
		ConfirmPassword: password,
	}
	reg.Normalize()
	if errs := reg.Validate(); len(errs) > 0 {
		log.Fatalf("invalid account: %s", strings.Join(errs, " "))
	}

	target, ok := billing.ParsePlan(*plan)
	if !ok {
		log.Fatalf("unknown plan %q", *plan)
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var existing database.User
	switch err := db.Where("email = ?", reg.Email).First(&existing).Error; {
	case err == nil:
		log.Fatalf("user %q already exists", reg.Email)
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		log.Fatalf("query user: %v", err)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()
	user := database.User{
		Username:       reg.Username(),
		FirstName:      reg.FirstName,
		LastName:       reg.LastName,
		Email:          reg.Email,
		PasswordHash:   hashed,
		Tokens:         billing.FreeDailyTokens,
		Plan:           string(billing.PlanFree),
		LastTokenReset: &now,
	}
	if target != billing.PlanFree {
		if err := billing.ApplyPlan(&user, target); err != nil {
			log.Fatalf("apply plan: %v", err)
		}
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("create user: %v", err)
	}

	fmt.Printf("已创建账号：\n")
	fmt.Printf("邮箱: %s\n", user.Email)
	fmt.Printf("套餐: %s（%d tokens）\n", user.Plan, user.Tokens)
	fmt.Printf("初始密码: %s\n", password)
	fmt.Printf("提示：该密码仅显示一次，请妥善保存。\n")
}

// generateRandomPassword 生成满足强度要求的随机密码。
func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 18
	}
	buf := make([]byte, bytesLen)
	for {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		password := base64.RawURLEncoding.EncodeToString(buf)
		if auth.CheckPasswordStrength(password) == nil {
			return password, nil
		}
	}
}
