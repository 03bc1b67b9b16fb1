// handlers/routes.go
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"task-staking-system/blob"
	"task-staking-system/metrics"
	"task-staking-system/middleware"
	"task-staking-system/services"
)

type Handler struct {
	users *services.UserService
	tasks *services.TaskService
	blobs blob.Store
	log   *logrus.Entry
}

func NewHandler(users *services.UserService, tasks *services.TaskService, blobs blob.Store, log *logrus.Entry) *Handler {
	return &Handler{users: users, tasks: tasks, blobs: blobs, log: log.WithField("component", "http")}
}

// SetupRoutes registers the public API. m may be nil when metrics are off.
func SetupRoutes(app *fiber.App, h *Handler, m *metrics.Metrics, operatorToken string) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if m != nil {
		app.Get("/metrics", m.Handler())
	}

	app.Post("/create-user", h.CreateUser)
	app.Get("/user/:address", h.GetUser)

	app.Post("/create-task", h.CreateTask)
	app.Get("/tasks/:address", h.ListTasks)
	app.Patch("/submit-proof/:taskId", h.SubmitProof)

	// 🔐 operator only when OPERATOR_TOKEN is set
	app.Patch("/verify-task/:taskId", middleware.OperatorAuth(operatorToken, h.log), h.VerifyTask)

	app.Get("/uploads/:filename", h.ServeUpload)
}
