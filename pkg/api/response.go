package api

import (
	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API answer. Code 0 carries Data, code 1 carries Msg.
type Response[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg,omitempty"`
	Data *T     `json:"data,omitempty"`
}

func success[T any](c *gin.Context, status int, data T) {
	c.JSON(status, Response[T]{Code: 0, Data: &data})
}

func failure(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response[struct{}]{Code: 1, Msg: msg})
}
