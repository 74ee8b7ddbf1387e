package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/domain"
	"github.com/Skufu/heartrisk/internal/logger"
)

// ErrorBody is the payload of every failed API call.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a machine-readable kind and a human-readable detail.
type ErrorDetail struct {
	Kind   domain.Kind       `json:"kind"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

// statusFor maps an error kind to its HTTP status. validation is the status used for
// validation errors, which differs between request bodies and query strings.
func statusFor(kind domain.Kind, validation int) int {
	switch kind {
	case domain.KindValidation:
		return validation
	case domain.KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error, validation int) {
	kind := domain.KindOf(err)
	status := statusFor(kind, validation)

	detail := ErrorDetail{Kind: kind, Detail: err.Error()}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		detail.Detail = domain.ErrValidation.Error()
		detail.Fields = verr.Fields
	}

	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
		// Backend details stay in the logs.
		detail.Detail = string(kind)
	}
	c.AbortWithStatusJSON(status, ErrorBody{Error: detail})
}

// bindError turns a JSON decoding failure into a validation error, naming the field when
// the decoder reports one.
func bindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var maxErr *http.MaxBytesError

	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return domain.FieldError(typeErr.Field, "must be an integer")
	case errors.As(err, &maxErr):
		return domain.FieldError("body", "request body too large")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return domain.FieldError("body", "malformed JSON")
	case errors.Is(err, io.EOF):
		return domain.FieldError("body", "request body is empty")
	default:
		return domain.FieldError("body", err.Error())
	}
}
