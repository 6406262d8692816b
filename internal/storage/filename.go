package storage

import (
	"path"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// SecureFilename 把用户提供的文件名规整为只含 ASCII 字母、数字、点、下划线和连字符的形式。
func SecureFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r > unicode.MaxASCII:
			continue
		case unicode.IsSpace(r):
			b.WriteByte('_')
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "._")
}

// PictureKey 生成 <UTC yyyymmdd_hhmmss>_<安全文件名> 形式的图片 key。
func PictureKey(now time.Time, original string) string {
	safe := SecureFilename(original)
	if safe == "" {
		safe = "picture"
	}
	return now.UTC().Format("20060102_150405") + "_" + safe
}
