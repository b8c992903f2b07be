package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tasklist-service/internal/auth"
	"github.com/spec-kit/tasklist-service/internal/domain"
)

// ResourceHandlers are the list, task, subtask, comment and tag handlers that
// live outside this service. Each runs only after the caller has been
// authenticated and authorized for the resource it addresses. Nil handlers are
// not mounted.
type ResourceHandlers struct {
	ListLists  fiber.Handler
	CreateList fiber.Handler
	GetList    fiber.Handler
	UpdateList fiber.Handler
	DeleteList fiber.Handler

	ListTasks  fiber.Handler
	CreateTask fiber.Handler
	GetTask    fiber.Handler
	UpdateTask fiber.Handler
	DeleteTask fiber.Handler

	ListSubtasks  fiber.Handler
	CreateSubtask fiber.Handler
	UpdateSubtask fiber.Handler
	DeleteSubtask fiber.Handler

	ListComments fiber.Handler
	AddComment   fiber.Handler

	ListTags  fiber.Handler
	CreateTag fiber.Handler
	UpdateTag fiber.Handler
	DeleteTag fiber.Handler
}

// resourceRoute guards one endpoint. A zero action means authentication only.
type resourceRoute struct {
	method  string
	path    string
	action  auth.Action
	kind    domain.ResourceKind
	locate  auth.ResourceLocator
	handler fiber.Handler
}

func (h ResourceHandlers) routes() []resourceRoute {
	return []resourceRoute{
		{fiber.MethodGet, "/lists", "", "", nil, h.ListLists},
		{fiber.MethodPost, "/lists", "", "", nil, h.CreateList},
		{fiber.MethodGet, "/lists/:listId", auth.ActionRead, domain.KindList, auth.FromParam("listId"), h.GetList},
		{fiber.MethodPut, "/lists/:listId", auth.ActionWrite, domain.KindList, auth.FromParam("listId"), h.UpdateList},
		{fiber.MethodDelete, "/lists/:listId", auth.ActionDelete, domain.KindList, auth.FromParam("listId"), h.DeleteList},

		{fiber.MethodGet, "/tasks/list/:listId", auth.ActionRead, domain.KindList, auth.FromParam("listId"), h.ListTasks},
		{fiber.MethodPost, "/tasks", auth.ActionWrite, domain.KindList, auth.FromBody("listId"), h.CreateTask},
		{fiber.MethodGet, "/tasks/:taskId", auth.ActionRead, domain.KindTask, auth.FromParam("taskId"), h.GetTask},
		{fiber.MethodPut, "/tasks/:taskId", auth.ActionWrite, domain.KindTask, auth.FromParam("taskId"), h.UpdateTask},
		{fiber.MethodDelete, "/tasks/:taskId", auth.ActionDelete, domain.KindTask, auth.FromParam("taskId"), h.DeleteTask},

		{fiber.MethodGet, "/subtasks/task/:taskId", auth.ActionRead, domain.KindTask, auth.FromParam("taskId"), h.ListSubtasks},
		{fiber.MethodPost, "/subtasks", auth.ActionWrite, domain.KindTask, auth.FromBody("taskId"), h.CreateSubtask},
		{fiber.MethodPut, "/subtasks/:subtaskId", auth.ActionWrite, domain.KindSubtask, auth.FromParam("subtaskId"), h.UpdateSubtask},
		{fiber.MethodDelete, "/subtasks/:subtaskId", auth.ActionDelete, domain.KindSubtask, auth.FromParam("subtaskId"), h.DeleteSubtask},

		{fiber.MethodGet, "/task-comments/task/:taskId", auth.ActionRead, domain.KindTask, auth.FromParam("taskId"), h.ListComments},
		{fiber.MethodPost, "/task-comments", auth.ActionComment, domain.KindTask, auth.FromBody("taskId"), h.AddComment},

		{fiber.MethodGet, "/tags/list/:listId", auth.ActionRead, domain.KindList, auth.FromParam("listId"), h.ListTags},
		{fiber.MethodPost, "/tags", auth.ActionWrite, domain.KindList, auth.FromBody("listId"), h.CreateTag},
		{fiber.MethodPut, "/tags/:tagId", auth.ActionWrite, domain.KindTag, auth.FromParam("tagId"), h.UpdateTag},
		{fiber.MethodDelete, "/tags/:tagId", auth.ActionDelete, domain.KindTag, auth.FromParam("tagId"), h.DeleteTag},
	}
}

// RegisterResourceRoutes mounts the guarded resource endpoints under router.
func RegisterResourceRoutes(router fiber.Router, authn *auth.AuthMiddleware, access *auth.AccessMiddleware, handlers ResourceHandlers) {
	for _, route := range handlers.routes() {
		if route.handler == nil {
			continue
		}
		chain := []fiber.Handler{authn.Handle}
		if route.action != "" {
			chain = append(chain, access.Require(route.action, route.kind, route.locate))
		}
		chain = append(chain, route.handler)
		router.Add(route.method, route.path, chain...)
	}
}
