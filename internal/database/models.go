package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示一个账号，拥有简历与购买记录。
type User struct {
	gorm.Model
	Username       string     `gorm:"index;size:64"`
	FirstName      string     `gorm:"size:64"`
	LastName       string     `gorm:"size:64"`
	Email          string     `gorm:"uniqueIndex;size:255"`
	PasswordHash   string     `gorm:"size:255"`
	Tokens         int        `gorm:"not null;default:0"`
	Plan           string     `gorm:"size:16;not null;default:free"`
	LastGenerated  *time.Time
	LastTokenReset *time.Time
	Resumes        []Resume   `gorm:"constraint:OnDelete:CASCADE"`
	Purchases      []Purchase `gorm:"constraint:OnDelete:CASCADE"`
}

// Resume 表示生成的简历，删除为硬删除。
// Experiences/Projects/Certifications 以 JSON 数组存储；PdfKey 与 PdfStatus 记录最近一次导出。
type Resume struct {
	ID             uint      `gorm:"primaryKey"`
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
	UserID         uint   `gorm:"index;not null"`
	Name           string `gorm:"size:255"`
	Profession     string `gorm:"size:255"`
	Email          string `gorm:"size:255"`
	Phone          string `gorm:"size:64"`
	LinkedIn       string `gorm:"column:linkedin;size:512"`
	GitHub         string `gorm:"column:github;size:512"`
	Bio            string `gorm:"type:text"`
	Skills         string `gorm:"type:text"`
	Experiences    datatypes.JSON
	Projects       datatypes.JSON
	Certifications datatypes.JSON
	Degree         string  `gorm:"size:255"`
	Institute      string  `gorm:"size:255"`
	GradYear       string  `gorm:"size:16"`
	ProfilePicURL  *string `gorm:"size:512"`
	Template       string  `gorm:"size:64;not null;default:classic"`
	PdfKey         string  `gorm:"size:512"`
	PdfStatus      string  `gorm:"size:32"`
}

// Purchase 记录一次额度包或套餐购买，只追加不修改。
type Purchase struct {
	ID          uint      `gorm:"primaryKey"`
	CreatedAt   time.Time `gorm:"index"`
	UserID      uint      `gorm:"index;not null"`
	Amount      int       `gorm:"not null"`
	Description string    `gorm:"size:255"`
}
