package logging_test

import (
	"context"
	"testing"

	"github.com/IGNF/ocsge-pv/pkg/logging"
	"github.com/stretchr/testify/assert"
)

func TestContextFunctions(t *testing.T) {
	t.Run("WithScope adds scope to context", func(t *testing.T) {
		ctx := context.Background()
		ctx = logging.WithScope(ctx, "pv_2024")

		logger := logging.FromContext(ctx)
		assert.NotNil(t, logger)
	})

	t.Run("WithOperation adds operation to context", func(t *testing.T) {
		ctx := context.Background()
		ctx = logging.WithOperation(ctx, "geometrize")

		logger := logging.FromContext(ctx)
		assert.NotNil(t, logger)
	})

	t.Run("WithDeclaration adds declaration id to context", func(t *testing.T) {
		ctx := context.Background()
		ctx = logging.WithDeclaration(ctx, 42)

		logger := logging.FromContext(ctx)
		assert.NotNil(t, logger)
	})

	t.Run("WithRunID tags every log line", func(t *testing.T) {
		testLogger := logging.NewTestLogger(t)
		ctx := logging.WithLogger(context.Background(), testLogger.Logger)
		ctx = logging.WithRunID(ctx, "0d07c1f6")

		logging.Ctx(ctx).Info().Msg("run started")

		assert.Equal(t, "0d07c1f6", logging.RunID(ctx))
		testLogger.AssertContains(t, "run_id")
		testLogger.AssertContains(t, "0d07c1f6")
	})

	t.Run("WithFields adds custom fields to context", func(t *testing.T) {
		ctx := context.Background()
		fields := map[string]interface{}{
			"batch_size": 200,
			"table":      "declarations",
		}
		ctx = logging.WithFields(ctx, fields)

		logger := logging.FromContext(ctx)
		assert.NotNil(t, logger)
	})

	t.Run("FromContext returns logger from context", func(t *testing.T) {
		ctx := context.Background()

		logger1 := logging.FromContext(ctx)
		assert.NotNil(t, logger1)

		ctx = logging.WithScope(ctx, "pv_2023")
		logger2 := logging.FromContext(ctx)
		assert.NotNil(t, logger2)
	})

	t.Run("Ctx extracts logger from context", func(t *testing.T) {
		ctx := context.Background()
		ctx = logging.WithScope(ctx, "pv_2024")

		logger := logging.Ctx(ctx)
		assert.NotNil(t, logger)
	})

	t.Run("chaining context functions", func(t *testing.T) {
		ctx := context.Background()
		ctx = logging.WithScope(ctx, "pv_2024")
		ctx = logging.WithOperation(ctx, "pair")
		ctx = logging.WithDeclaration(ctx, 42)
		ctx = logging.WithDetection(ctx, 7)

		logger := logging.FromContext(ctx)
		assert.NotNil(t, logger)
	})
}
