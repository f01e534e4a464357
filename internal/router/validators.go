package router

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	// 03XXXXXXXXX, optionally with +92 / 0092 instead of the leading 0
	pkPhonePattern = regexp.MustCompile(`^(?:\+92|0092|0)3\d{9}$`)
	slugPattern    = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	phoneNoise     = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

	registerOnce sync.Once
)

func validPKPhone(fl validator.FieldLevel) bool {
	return pkPhonePattern.MatchString(phoneNoise.Replace(fl.Field().String()))
}

// normalizePhone drops the separators people type so numbers are stored alike.
func normalizePhone(s string) string {
	return phoneNoise.Replace(strings.TrimSpace(s))
}

func validSlug(fl validator.FieldLevel) bool {
	return slugPattern.MatchString(fl.Field().String())
}

// registerValidators teaches gin's validator the shop's field rules and
// makes error messages use JSON names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
		_ = v.RegisterValidation("pkphone", validPKPhone)
		_ = v.RegisterValidation("slug", validSlug)
	})
}
