package delivery

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type errorBody struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

func respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, errorBody{Message: message})
}

// respondBindingError reports request-shape failures as a 400 with field-level
// detail when the binding layer produced any.
func respondBindingError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make([]string, 0, len(validationErrs))
		for _, fieldErr := range validationErrs {
			details = append(details, fmt.Sprintf("field '%s' failed on the '%s' rule", fieldErr.Field(), fieldErr.Tag()))
		}
		c.JSON(http.StatusBadRequest, errorBody{Message: "Validation failed", Errors: details})
		return
	}
	c.JSON(http.StatusBadRequest, errorBody{Message: "Invalid request body: " + err.Error()})
}
