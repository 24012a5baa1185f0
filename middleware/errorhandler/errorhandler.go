package errorhandler

import (
	"fmt"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware"
)

// ErrorHandlerFunc maps an error from downstream. Returning nil suppresses it.
type ErrorHandlerFunc func(error) error

// ErrorHandler recovers panics from downstream handlers and passes every
// error through an optional mapping function.
type ErrorHandler struct {
	handler ErrorHandlerFunc
}

// NewErrorHandler creates an error handling middleware
func NewErrorHandler(handler ErrorHandlerFunc) *ErrorHandler {
	return &ErrorHandler{handler: handler}
}

// Name returns the middleware name
func (m *ErrorHandler) Name() string {
	return "ErrorHandler"
}

// Execute runs next, converting a panic into ErrPanicRecovered.
func (m *ErrorHandler) Execute(ctx *middleware.Context, next middleware.Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", middleware.ErrPanicRecovered, r)
		}
		if err != nil {
			ctx.Error = err
			if m.handler != nil {
				err = m.handler(err)
			}
		}
	}()
	return next(ctx)
}
