package api

import "github.com/gin-gonic/gin"

// AbortWithError stops the handler chain, records err for the request
// logger and writes the JSON error body.
func AbortWithError(ctx *gin.Context, status int, code string, err error) {
	_ = ctx.Error(err)
	ctx.AbortWithStatusJSON(status, APIError{
		Code:    code,
		Message: err.Error(),
	})
}
