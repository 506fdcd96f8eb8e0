package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskflow/internal/middleware"
	"taskflow/internal/model"
	"taskflow/internal/service"
	"taskflow/pkg/response"
)

type TaskHandler struct {
	taskService   service.TaskService
	assignService service.AssignService
	auth          *middleware.Authenticator
}

func NewTaskHandler(taskService service.TaskService, assignService service.AssignService, auth *middleware.Authenticator) *TaskHandler {
	return &TaskHandler{taskService: taskService, assignService: assignService, auth: auth}
}

// RegisterRoutes binds the task endpoints. Per-task rules (ownership,
// completed tasks) are enforced by the service.
func (h *TaskHandler) RegisterRoutes(router *gin.RouterGroup) {
	tasks := router.Group("/tasks", h.auth.Authenticate())
	{
		tasks.GET("", h.ListTasks)
		tasks.POST("", h.CreateTask)
		tasks.POST("/auto-assign", h.auth.RequireCapability(model.CapAutoAssign), h.AutoAssign)
		tasks.GET("/:id", h.GetTask)
		tasks.PUT("/:id", h.UpdateTask)
		tasks.DELETE("/:id", h.DeleteTask)
		tasks.POST("/:id/cancel", h.CancelTask)
		tasks.POST("/:id/reopen", h.ReopenTask)
		tasks.POST("/:id/takeover", h.TakeoverTask)
		tasks.POST("/:id/share", h.ShareTask)
	}
}

// ListTasks handles GET /tasks
// @Summary      List tasks
// @Description  Staff only see tasks assigned to or shared with them. Newest first.
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        date     query     string  false  "all, today, yesterday, tomorrow or last30"
// @Param        branch   query     string  false  "Branch code"
// @Param        staff    query     string  false  "Assignee username"
// @Param        status   query     string  false  "Task status"
// @Param        service  query     string  false  "Service type"
// @Param        search   query     string  false  "Order number, customer name or contact number"
// @Success      200      {object}  response.Response{data=[]service.TaskResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/tasks [get]
func (h *TaskHandler) ListTasks(c *gin.Context) {
	var query service.TaskListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "Invalid query parameters")
		return
	}

	tasks, err := h.taskService.List(c.Request.Context(), middleware.CurrentActor(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tasks))
}

// GetTask handles GET /tasks/:id
// @Summary      Get task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  response.Response{data=service.TaskResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/tasks/{id} [get]
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := h.taskService.Get(c.Request.Context(), middleware.CurrentActor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, task))
}

// CreateTask handles POST /tasks
// @Summary      Create task
// @Description  Allocates the next TF-NNN order number. Status defaults to Received.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateTaskRequest  true  "Task"
// @Success      201      {object}  response.Response{data=service.TaskResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/tasks [post]
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req service.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	res, err := h.taskService.Create(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.SuccessMessage(http.StatusCreated, res.Message, res.Task))
}

// UpdateTask handles PUT /tasks/:id
// @Summary      Update task
// @Description  Managers and admins may change any field. Staff may change status, description, paid_amount and service_charge on their own or shared tasks.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                        true  "Task ID"
// @Param        payload  body      service.UpdateTaskRequest  true  "Changed fields"
// @Success      200      {object}  response.Response{data=service.TaskResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/tasks/{id} [put]
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req service.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	res, err := h.taskService.Update(c.Request.Context(), middleware.CurrentActor(c), id, req)
	h.respondResult(c, res, err)
}

// DeleteTask handles DELETE /tasks/:id
// @Summary      Delete task
// @Tags         tasks
// @Security     BearerAuth
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Router       /api/tasks/{id} [delete]
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := h.taskService.Delete(c.Request.Context(), middleware.CurrentActor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Task deleted successfully"))
}

// CancelTask handles POST /tasks/:id/cancel
// @Summary      Cancel task
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  response.Response{data=service.TaskResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/tasks/{id}/cancel [post]
func (h *TaskHandler) CancelTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	res, err := h.taskService.Cancel(c.Request.Context(), middleware.CurrentActor(c), id)
	h.respondResult(c, res, err)
}

// ReopenTask handles POST /tasks/:id/reopen
// @Summary      Reopen completed task
// @Description  Managers and admins only. Moves a Completed task back to In Progress.
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  response.Response{data=service.TaskResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/tasks/{id}/reopen [post]
func (h *TaskHandler) ReopenTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	res, err := h.taskService.Reopen(c.Request.Context(), middleware.CurrentActor(c), id)
	h.respondResult(c, res, err)
}

// TakeoverTask handles POST /tasks/:id/takeover
// @Summary      Take over task
// @Description  Adds the caller to shared_with. Taking over twice is a no-op.
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Task ID"
// @Success      200  {object}  response.Response{data=service.TaskResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/tasks/{id}/takeover [post]
func (h *TaskHandler) TakeoverTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	res, err := h.taskService.Takeover(c.Request.Context(), middleware.CurrentActor(c), id)
	h.respondResult(c, res, err)
}

// ShareTask handles POST /tasks/:id/share
// @Summary      Share task
// @Description  Grants another staff member access. Sharing twice with the same person is a no-op.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                       true  "Task ID"
// @Param        payload  body      service.ShareTaskRequest  true  "Staff username"
// @Success      200      {object}  response.Response{data=service.TaskResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/tasks/{id}/share [post]
func (h *TaskHandler) ShareTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req service.ShareTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	res, err := h.taskService.Share(c.Request.Context(), middleware.CurrentActor(c), id, req.Target())
	h.respondResult(c, res, err)
}

// AutoAssign handles POST /tasks/auto-assign
// @Summary      Auto-assign pending tasks
// @Description  Distributes up to 50 of the oldest Pending tasks across staff, lightest workload first.
// @Tags         tasks
// @Produce      json
// @Security     BearerAuth
// @Param        service_type  query     string  false  "Only assign tasks of this service type"
// @Success      200           {object}  response.Response{data=service.AutoAssignResult}
// @Failure      400           {object}  response.Response
// @Router       /api/tasks/auto-assign [post]
func (h *TaskHandler) AutoAssign(c *gin.Context) {
	res, err := h.assignService.AutoAssign(c.Request.Context(), middleware.CurrentActor(c), c.Query("service_type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, res.Message, res))
}

func (h *TaskHandler) respondResult(c *gin.Context, res *service.TaskResult, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessMessage(http.StatusOK, res.Message, res.Task))
}
