package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestFiberMiddleware(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(statusOf(err)).SendString(err.Error())
		},
	})
	app.Use(FiberMiddleware("/health"))
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/customers/:id", func(c *fiber.Ctx) error {
		AnnotateCaller(c, "u1", domain.RoleAdmin, "b1")
		if c.Params("id") == "missing" {
			return domain.ErrCustomerNotFound
		}
		return c.SendString("found")
	})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("boom") })

	for _, path := range []string{"/health", "/customers/abc", "/customers/missing", "/boom"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	spans := recorder.Ended()
	require.Len(t, spans, 3, "health probes are not traced")

	ok := spans[0]
	assert.Equal(t, "GET /customers/:id", ok.Name())
	assert.Equal(t, codes.Ok, ok.Status().Code)
	branch, found := attrValue(ok.Attributes(), "isp.branch_id")
	require.True(t, found)
	assert.Equal(t, "b1", branch.AsString())

	notFound := spans[1]
	status, found := attrValue(notFound.Attributes(), "http.status_code")
	require.True(t, found)
	assert.Equal(t, int64(http.StatusNotFound), status.AsInt64())
	assert.Equal(t, codes.Unset, notFound.Status().Code)

	failed := spans[2]
	assert.Equal(t, "GET /boom", failed.Name())
	assert.Equal(t, codes.Error, failed.Status().Code)
}
