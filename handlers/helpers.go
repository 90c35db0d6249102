package handlers

import (
	"encoding/json"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"yoma-api/auth"
	"yoma-api/errs"
	"yoma-api/middleware"
	"yoma-api/services"
	"yoma-api/store"
	"yoma-api/utils"
)

// requestField is the multipart form value holding the JSON request when
// files are uploaded alongside it.
const requestField = "request"

func caller(c *fiber.Ctx) (auth.Identity, error) {
	id, ok := middleware.Identity(c)
	if !ok {
		return auth.Identity{}, errs.ErrUnauthorized
	}
	return id, nil
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, errs.Validation("'%s' is not a valid id", name)
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return errs.Validation("invalid request body: %v", err)
	}
	return nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

// parseMultipart decodes the JSON in the "request" form value into v and
// returns the form for the files.
func parseMultipart(c *fiber.Ctx, v any) (*multipart.Form, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errs.Validation("invalid multipart form: %v", err)
	}
	if values := form.Value[requestField]; len(values) > 0 && values[0] != "" {
		if err := json.Unmarshal([]byte(values[0]), v); err != nil {
			return nil, errs.Validation("invalid '%s' form value: %v", requestField, err)
		}
	}
	return form, nil
}

// formFile reads the first file under field, or nil when there is none.
func formFile(form *multipart.Form, field string) (*utils.File, error) {
	files, err := utils.ReadFormFiles(form, field, services.MaxUploadBytes)
	if err != nil {
		return nil, errs.Validation("%v", err)
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &files[0], nil
}

// queryValues returns every value of key, accepting both repeated keys and
// comma separated lists.
func queryValues(c *fiber.Ctx, key string) []string {
	var out []string
	for _, raw := range c.Context().QueryArgs().PeekMulti(key) {
		for _, v := range strings.Split(string(raw), ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func queryIDs(c *fiber.Ctx, key string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, v := range queryValues(c, key) {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, errs.Validation("'%s' contains an invalid id '%s'", key, v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func queryID(c *fiber.Ctx, key string) (*uuid.UUID, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, errs.Validation("'%s' is not a valid id", key)
	}
	return &id, nil
}

// queryTime accepts RFC 3339 timestamps and plain dates.
func queryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, errs.Validation("'%s' must be a date (YYYY-MM-DD) or an RFC 3339 timestamp", key)
}

func queryPage(c *fiber.Ctx) store.Page {
	return store.Page{Number: c.QueryInt("page_number"), Size: c.QueryInt("page_size")}
}

func typed[T ~string](values []string) []T {
	out := make([]T, 0, len(values))
	for _, v := range values {
		out = append(out, T(v))
	}
	return out
}
