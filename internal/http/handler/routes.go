package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"siteimage/internal/imagehost"
	"siteimage/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, svc service.ImageService) {
	app.Get("/health", HealthCheck(svc))
	// Backward-compatible simple liveness check
	app.Get("/healthz", Liveness())

	images := app.Group("/images")
	images.Get("/", ListImages(svc))
	images.Post("/", UploadImage(svc))
	images.Delete("/", DestroyImages(svc))
	images.Get("/url", ImageURL(svc))
	images.Get("/placeholder", PlaceholderURL(svc))
	images.Get("/tagged/:tag", TaggedImages(svc))
	images.Delete("/:public_id", DestroyImage(svc))
	images.Post("/:public_id/rename", RenameImage(svc))
	images.Post("/:public_id/approve", ApproveImage(svc))
	images.Post("/:public_id/reject", RejectImage(svc))

	app.Get("/transformations", ListTransformations(svc))
	app.Post("/transformations/build", BuildTransformations(svc))
}

// HealthCheck pings the image host's backing store.
func HealthCheck(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

func Liveness() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListImages lists every asset; ?with_tags=true adds tags.
func ListImages(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		withTags, err := queryBool(c, "with_tags")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_WITH_TAGS", "with_tags must be a boolean")
		}
		res, err := svc.List(c.UserContext(), withTags)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadImage stores a multipart upload (field name: file).
// Optional form fields: folder, name, tags and transformations (comma separated),
// overwrite and moderation (booleans).
func UploadImage(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		overwrite, err := formBool(c, "overwrite")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OVERWRITE", "overwrite must be a boolean")
		}
		moderate, err := formBool(c, "moderation")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_MODERATION", "moderation must be a boolean")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		opts := imagehost.UploadOptions{
			Folder:          strings.TrimSpace(c.FormValue("folder")),
			Name:            strings.TrimSpace(c.FormValue("name")),
			Tags:            splitList(c.FormValue("tags")),
			Transformations: splitList(c.FormValue("transformations")),
			Overwrite:       overwrite,
		}
		res, err := svc.Upload(c.UserContext(), f, fh.Filename, opts, moderate)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// DestroyImages removes the assets carrying ?tag=. Removing everything needs ?all=true.
func DestroyImages(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tag := strings.TrimSpace(c.Query("tag"))
		all, err := queryBool(c, "all")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ALL", "all must be a boolean")
		}
		if tag == "" && !all {
			return writeError(c, fiber.StatusBadRequest, "TAG_REQUIRED", "tag is required unless all=true")
		}
		if err := svc.DeleteAll(c.UserContext(), tag); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ImageURL resolves ?public_id= with optional ?transformation= and ?format=.
// A blank public_id yields the placeholder.
func ImageURL(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		publicID := c.Query("public_id")
		u, err := svc.URL(c.UserContext(), publicID, c.Query("transformation"), c.Query("format"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"public_id": publicID, "url": u})
	}
}

func PlaceholderURL(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := svc.Placeholder(c.UserContext(), c.Query("transformation"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": u})
	}
}

func TaggedImages(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ids, err := svc.Tagged(c.UserContext(), c.Params("tag"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"tag": c.Params("tag"), "public_ids": ids})
	}
}

func DestroyImage(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, err := svc.Delete(c.UserContext(), c.Params("public_id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "image not found")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type renameRequest struct {
	To        string `json:"to"`
	Overwrite bool   `json:"overwrite"`
}

func RenameImage(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req renameRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		res, err := svc.Rename(c.UserContext(), c.Params("public_id"), strings.TrimSpace(req.To), req.Overwrite)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

func ApproveImage(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Approve(c.UserContext(), c.Params("public_id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func RejectImage(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Reject(c.UserContext(), c.Params("public_id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func ListTransformations(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(svc.Transformations())
	}
}

// BuildTransformations reconciles server-side named transformations with configuration.
func BuildTransformations(svc service.ImageService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.BuildTransformations(c.UserContext()); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func queryBool(c *fiber.Ctx, key string) (bool, error) {
	v := c.Query(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func formBool(c *fiber.Ctx, key string) (bool, error) {
	v := c.FormValue(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

// splitList splits a comma separated form value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
