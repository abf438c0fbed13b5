package serverutils

import "github.com/gofiber/fiber/v2"

func SuccessResponse(message string, data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"code":    fiber.StatusOK,
		"message": message,
		"data":    data,
	}
}

func ErrorResponse(code int, message string) fiber.Map {
	return fiber.Map{
		"success": false,
		"code":    code,
		"message": message,
	}
}

// ValidationErrorResponse carries per-field failures under "errors".
func ValidationErrorResponse(message string, fields map[string]string) fiber.Map {
	res := ErrorResponse(fiber.StatusBadRequest, message)
	res["errors"] = fields
	return res
}
