// handlers/tasks.go
package handlers

import (
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"task-staking-system/blob"
	"task-staking-system/services"
)

func (h *Handler) CreateTask(c *fiber.Ctx) error {
	var in services.CreateTaskInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}

	task, err := h.tasks.CreateTask(c.UserContext(), in)
	if err != nil {
		return h.respondError(c, err, "failed to create task")
	}

	resp := fiber.Map{"message": "Task created successfully", "task": task}
	if task.StakeTxHash != nil {
		resp["txHash"] = *task.StakeTxHash
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *Handler) ListTasks(c *fiber.Ctx) error {
	tasks, err := h.tasks.ListTasks(c.UserContext(), c.Params("address"))
	if err != nil {
		return h.respondError(c, err, "failed to fetch tasks")
	}
	return c.JSON(tasks)
}

type submitProofRequest struct {
	UserAddress string `json:"userAddress" form:"userAddress"`
	URLProof    string `json:"urlProof" form:"urlProof"`
	TextProof   string `json:"textProof" form:"textProof"`
}

// SubmitProof accepts multipart (with an optional proofFile), urlencoded or
// JSON bodies.
func (h *Handler) SubmitProof(c *fiber.Ctx) error {
	taskID, err := strconv.ParseInt(c.Params("taskId"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid task id")
	}

	var req submitProofRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return badRequest(c, "invalid request body")
	}

	in := services.ProofInput{URL: req.URLProof, Text: req.TextProof}
	if fh, err := c.FormFile("proofFile"); err == nil {
		in.File = &blob.Upload{
			OriginalName: fh.Filename,
			ContentType:  fh.Header.Get(fiber.HeaderContentType),
			Size:         fh.Size,
			Open: func() (io.ReadCloser, error) {
				f, err := fh.Open()
				if err != nil {
					return nil, err
				}
				return f, nil
			},
		}
	}

	task, proof, err := h.tasks.SubmitProof(c.UserContext(), taskID, req.UserAddress, in)
	if err != nil {
		return h.respondError(c, err, "failed to submit proof")
	}
	return c.JSON(fiber.Map{
		"message": "Proof submitted successfully",
		"task":    task,
		"proof":   proof,
	})
}

type verifyTaskRequest struct {
	Verified *bool `json:"verified"`
}

func (h *Handler) VerifyTask(c *fiber.Ctx) error {
	taskID, err := strconv.ParseInt(c.Params("taskId"), 10, 64)
	if err != nil {
		return badRequest(c, "invalid task id")
	}

	var req verifyTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "verified must be a boolean")
	}

	task, err := h.tasks.VerifyTask(c.UserContext(), taskID, req.Verified)
	if err != nil {
		return h.respondError(c, err, "failed to verify task")
	}
	return c.JSON(fiber.Map{"message": "Task verification updated", "task": task})
}
