package respond

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// SummaryBody pairs the operator-facing line with the structured result.
type SummaryBody struct {
	Summary string `json:"summary"`
	Result  any    `json:"result"`
}

// Summary writes a 200 response of the form {"summary": result.String(), "result": result}.
func Summary(c *gin.Context, result fmt.Stringer) {
	OK(c, SummaryBody{Summary: result.String(), Result: result})
}
