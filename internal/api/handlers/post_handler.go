package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(service service.PostService) *PostHandler {
	return &PostHandler{s: service}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.PostCreation
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	post, err := h.s.Create(c.Context(), userID, &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID := c.QueryInt("id", 0)

	if postID != 0 {
		post, err := h.s.PostInfo(c.Context(), userID, int64(postID))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusOK).JSON(post)
	}

	posts, err := h.s.List(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req transfer.PostUpdate
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	post, err := h.s.Update(c.Context(), userID, postID, &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) ReorderPosts(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var req transfer.PostReorder
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}

	if err := h.s.Reorder(c.Context(), userID, &req); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := queryID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.s.Remove(c.Context(), userID, postID); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) UploadMedia(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse form",
		})
	}

	files := form.File["files"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No files selected",
		})
	}

	assets, err := h.s.AttachMedia(c.Context(), userID, postID, files)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(assets)
}

func (h *PostHandler) ListMedia(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	assets, err := h.s.ListMedia(c.Context(), userID, postID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(assets)
}

func (h *PostHandler) ClearMedia(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.s.ClearMedia(c.Context(), userID, postID); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) PostLogs(c *fiber.Ctx) error {
	userID := GetUserID(c)
	postID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	logs, err := h.s.Logs(c.Context(), userID, postID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(logs)
}
