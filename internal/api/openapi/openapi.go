// Пакет openapi: OpenAPI-описание Identity Gateway и валидация входящих запросов по нему.
package openapi

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	apierrors "github.com/bigkaa/goartstore/identity-gateway/internal/api/errors"
)

//go:embed openapi.yaml
var specYAML []byte

// Spec возвращает исходный YAML описания API.
func Spec() []byte {
	return specYAML
}

// Load разбирает встроенное описание и проверяет его корректность.
func Load(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(specYAML)
	if err != nil {
		return nil, fmt.Errorf("разбор OpenAPI: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI: %w", err)
	}
	return doc, nil
}

// Validator проверяет запросы на соответствие OpenAPI-описанию.
type Validator struct {
	router routers.Router
	logger *slog.Logger
}

// NewValidator создаёт валидатор запросов по документу doc.
func NewValidator(doc *openapi3.T, logger *slog.Logger) (*Validator, error) {
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("маршрутизатор OpenAPI: %w", err)
	}
	return &Validator{
		router: router,
		logger: logger.With(slog.String("component", "openapi_validator")),
	}, nil
}

// Middleware возвращает HTTP middleware валидации.
// Запросы вне описания пропускаются без изменений: 404/405 отдаёт chi.
// Аутентификация проверяется отдельным middleware, схема bearerAuth здесь не проверяется.
func (v *Validator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				v.logger.Debug("Запрос не соответствует OpenAPI",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, describe(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// describe формирует краткое сообщение об ошибке валидации без дампа схемы.
func describe(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.Parameter != nil:
			return fmt.Sprintf("некорректный параметр %s: %s", reqErr.Parameter.Name, reason(reqErr))
		case reqErr.RequestBody != nil:
			return "некорректное тело запроса: " + reason(reqErr)
		}
	}
	return "запрос не соответствует API: " + err.Error()
}

func reason(reqErr *openapi3filter.RequestError) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(reqErr.Err, &schemaErr) {
		if field := schemaErr.JSONPointer(); len(field) > 0 {
			return fmt.Sprintf("%v: %s", field, schemaErr.Reason)
		}
		return schemaErr.Reason
	}
	if reqErr.Reason != "" {
		return reqErr.Reason
	}
	if reqErr.Err != nil {
		return reqErr.Err.Error()
	}
	return "ошибка валидации"
}
