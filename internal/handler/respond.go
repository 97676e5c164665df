package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tableside-pos/api/internal/apperr"
	"github.com/tableside-pos/api/internal/cart"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/orderstore"
	"github.com/tableside-pos/api/internal/session"
	"github.com/tableside-pos/api/internal/views"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeJSONBody decodes r's body into dest and runs struct validation.
func decodeJSONBody(r *http.Request, dest any) error {
	defer func() {
		io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return apperr.Wrap(apperr.CodeValidation, err, "invalid request body")
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *apperr.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return apperr.New(apperr.CodeValidation, "validation failed").WithDetails(details)
	}
	return apperr.Wrap(apperr.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "uuid":
		return "must be a valid id"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	}
	return "is invalid"
}

// classify maps domain errors onto apperr codes. fallback is used for
// anything unrecognised, normally READ_FAILED or WRITE_FAILED.
func classify(err error, fallback apperr.Code) *apperr.Error {
	if typed := apperr.As(err); typed != nil {
		return typed
	}

	var headless *orderstore.HeadlessOrderError
	switch {
	case errors.As(err, &headless):
		return apperr.Wrap(apperr.CodeWriteFailed, err, "order saved without its items").
			WithDetails(map[string]any{"order_id": headless.OrderID})
	case errors.Is(err, orderstore.ErrEmptyItems),
		errors.Is(err, orderstore.ErrInvalidTableNumber),
		errors.Is(err, orderstore.ErrInvalidQuantity),
		errors.Is(err, orderstore.ErrInvalidPrice),
		errors.Is(err, orderstore.ErrTotalMismatch),
		errors.Is(err, orderstore.ErrInvalidStatus),
		errors.Is(err, cart.ErrTableNumberRequired),
		errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, views.ErrUnknownFilter):
		return apperr.Wrap(apperr.CodeValidation, err, err.Error())
	case errors.Is(err, orderstore.ErrNoBranch):
		return apperr.Wrap(apperr.CodeForbidden, err, "no branch assigned")
	case errors.Is(err, orderstore.ErrOrderNotFound):
		return apperr.Wrap(apperr.CodeNotFound, err, "order not found")
	case errors.Is(err, views.ErrInvalidTransition):
		return apperr.Wrap(apperr.CodeConflict, err, err.Error())
	case errors.Is(err, session.ErrInvalidCredentials):
		return apperr.Wrap(apperr.CodeUnauthorized, err, "invalid credentials")
	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrRevoked):
		return apperr.Wrap(apperr.CodeUnauthorized, err, "invalid token")
	}
	return apperr.Wrap(fallback, err, "")
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// writeError renders err and logs anything that is not the caller's fault.
func writeError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error, fallback apperr.Code) {
	typed := classify(err, fallback)
	meta := apperr.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case apperr.CodeValidation,
		apperr.CodeUnauthorized,
		apperr.CodeForbidden,
		apperr.CodeNotFound,
		apperr.CodeConflict,
		apperr.CodeWriteFailed:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	resp := errorResponse{Error: msg, Code: string(typed.Code())}
	if meta.DetailsAllowed {
		resp.Details = typed.Details()
	}

	if meta.HTTPStatus >= http.StatusInternalServerError && log != nil {
		ctx := log.WithFields(r.Context(), map[string]any{
			"error_code": string(typed.Code()),
			"path":       r.URL.Path,
		})
		log.Error(ctx, "request failed", err)
	}

	writeJSON(w, meta.HTTPStatus, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
