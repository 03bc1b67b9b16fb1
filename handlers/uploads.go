// handlers/uploads.go
package handlers

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"task-staking-system/blob"
)

// ServeUpload streams a stored proof file. Names are unescaped and checked
// for traversal before the blob store is touched.
func (h *Handler) ServeUpload(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("filename"))
	if err != nil || !blob.ValidName(name) {
		return badRequest(c, "invalid file name")
	}

	r, err := h.blobs.Get(c.UserContext(), name)
	switch {
	case errors.Is(err, blob.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
	case errors.Is(err, blob.ErrInvalidName):
		return badRequest(c, "invalid file name")
	case err != nil:
		h.log.WithError(err).WithField("filename", name).Error("failed to open upload")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read file"})
	}

	c.Set(fiber.HeaderContentType, r.ContentType)
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	return c.SendStream(r, int(r.Size))
}
