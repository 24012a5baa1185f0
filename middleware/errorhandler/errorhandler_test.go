package errorhandler

import (
	"context"
	"errors"
	"testing"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/middleware"
)

func TestErrorHandler(t *testing.T) {
	t.Run("catches error from next middleware", func(t *testing.T) {
		errorCaught := false
		handler := NewErrorHandler(func(err error) error {
			errorCaught = true
			return nil
		})

		ctx := middleware.NewContext(context.Background())
		err := handler.Execute(ctx, func(c *middleware.Context) error {
			return errors.New("test error")
		})

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !errorCaught {
			t.Error("error was not caught")
		}
		if ctx.Error == nil {
			t.Error("expected error to be recorded on the context")
		}
	})

	t.Run("passes through non-errors", func(t *testing.T) {
		handlerCalled := false
		handler := NewErrorHandler(func(err error) error {
			handlerCalled = true
			return err
		})

		err := handler.Execute(middleware.NewContext(context.Background()), func(c *middleware.Context) error {
			return nil
		})

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if handlerCalled {
			t.Error("error handler should not be called for nil errors")
		}
	})

	t.Run("recovers panics", func(t *testing.T) {
		handler := NewErrorHandler(nil)

		err := handler.Execute(middleware.NewContext(context.Background()), func(c *middleware.Context) error {
			panic("provider exploded")
		})

		if !errors.Is(err, middleware.ErrPanicRecovered) {
			t.Fatalf("expected ErrPanicRecovered, got %v", err)
		}
	})
}
