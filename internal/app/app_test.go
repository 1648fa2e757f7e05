package app

import (
	"context"
	"testing"

	"github.com/Temutjin2k/trip-dispatch/pkg/logger"
)

// Shutdown runs even when startup failed half-way and some components
// were never created.
func TestCloseHandlesNilComponents(t *testing.T) {
	a := &App{log: logger.InitLogger("test", logger.LevelError)}

	a.close(context.Background())
}
