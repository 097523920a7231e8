package api

import (
	"os"
	"path/filepath"
	"strings"

	"nutriplan/logger"

	"github.com/gofiber/fiber/v2"
)

// FileHandler accepts replacement knowledge-base PDFs into the directory
// watched by the loader.
type FileHandler struct {
	dir string
	log *logger.Logger
}

func NewFileHandler(dir string, log *logger.Logger) *FileHandler {
	return &FileHandler{dir: dir, log: logger.OrNop(log)}
}

func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}
	name := filepath.Base(file.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return NewValidationError(map[string]string{"file": "only .pdf documents are accepted"})
	}
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(h.dir, name)
	if err := c.SaveFile(file, path); err != nil {
		return err
	}
	h.log.Info("[UPLOAD] file saved", "path", path, "size", file.Size)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"saved": path})
}
