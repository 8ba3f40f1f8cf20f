package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/platform"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/rs/zerolog/log"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

// parseBody decodes the JSON body into dst and runs its validate tags.
func parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return &service.ValidationError{Field: "body", Message: "invalid request body"}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return &service.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func fieldError(fe validator.FieldError) *service.ValidationError {
	field := fe.Field()
	msg := fmt.Sprintf("failed %s", fe.Tag())
	switch fe.Tag() {
	case "required", "required_without":
		msg = "is required"
	case "oneof":
		msg = fmt.Sprintf("must be one of [%s]", fe.Param())
	case "max":
		msg = fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		msg = fmt.Sprintf("must be at least %s", fe.Param())
	case "unique":
		msg = "must not contain duplicates"
	case "timezone":
		msg = "must be an IANA timezone"
	case "datetime":
		msg = fmt.Sprintf("must match %s", fe.Param())
	}
	return &service.ValidationError{Field: field, Message: msg}
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, &service.ValidationError{Field: name, Message: "is not valid"}
	}
	return int64(id), nil
}

func queryID(c *fiber.Ctx) (int64, error) {
	id := c.QueryInt("id", 0)
	if id <= 0 {
		return 0, &service.ValidationError{Field: "id", Message: "is not valid"}
	}
	return int64(id), nil
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		ve       *service.ValidationError
		batchErr *service.BatchError
		apiErr   *platform.APIError
	)
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, service.ErrInsufficientCredits):
		return fiber.StatusPaymentRequired
	case errors.Is(err, service.ErrTransactionConflict):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrPlatformNotConnected), errors.Is(err, service.ErrCredentialExpired):
		return fiber.StatusUnauthorized
	case errors.Is(err, service.ErrQuotaExceeded):
		return fiber.StatusTooManyRequests
	case errors.Is(err, service.ErrContentRejected):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrUpstreamTimeout):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &batchErr), errors.As(err, &apiErr):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return c.Status(status).JSON(fiber.Map{
			"error": "Something went wrong",
		})
	}

	body := fiber.Map{"error": err.Error()}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	var batchErr *service.BatchError
	if errors.As(err, &batchErr) {
		body["attempts"] = batchErr.Attempts
	}
	return c.Status(status).JSON(body)
}
