// Package response writes the JSON envelope every endpoint answers with.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends a failed envelope with the given status.
func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, Body{Error: msg})
}

// Abort sends a failed envelope and stops the handler chain. Used by guards.
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Body{Error: msg})
}

func BadRequest(c *gin.Context, msg string)   { Error(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string) { Error(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string)    { Error(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)     { Error(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)     { Error(c, http.StatusConflict, msg) }

// ServiceUnavailable sends 503, e.g. when checkout or image storage is not configured.
func ServiceUnavailable(c *gin.Context, msg string) {
	Error(c, http.StatusServiceUnavailable, msg)
}

// Internal sends 500. msg is shown to clients, so never pass raw errors.
func Internal(c *gin.Context, msg string) { Error(c, http.StatusInternalServerError, msg) }
