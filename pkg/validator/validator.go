package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

// supra 账户地址: 0x + 1..64 位 hex
var supraAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		validate = v
		_ = validate.RegisterValidation("supra_addr", supraAddress)
		_ = validate.RegisterValidation("decimal_gt0", positiveDecimal)
	}
}

func supraAddress(fl validator.FieldLevel) bool {
	return supraAddressRe.MatchString(fl.Field().String())
}

func positiveDecimal(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return d.IsPositive()
}

// IsSupraAddress reports whether s looks like a hex account address.
func IsSupraAddress(s string) bool {
	return supraAddressRe.MatchString(s)
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Field()
			tag := e.Tag()
			param := e.Param()

			switch tag {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能为空", field))
			case "oneof":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是 [%s] 之一", field, param))
			case "supra_addr":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不是合法的 Supra 地址", field))
			case "decimal_gt0":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是大于 0 的数字", field))
			case "min":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能小于 %s", field, param))
			case "excluded_with":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能与 %s 同时使用", field, param))
			case "max":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能超过 %s", field, param))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s 校验失败 (%s)", field, tag))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	return "请求参数错误"
}
