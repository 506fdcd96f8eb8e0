package handler

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"taskflow/internal/middleware"
	"taskflow/internal/service"
)

const exportSheet = "Tasks"

var exportHeader = []string{"order_no", "service_type", "customer_name", "assigned_to", "status", "task_date", "paid_amount"}

type ExportHandler struct {
	taskService service.TaskService
	auth        *middleware.Authenticator
	clock       service.Clock
}

func NewExportHandler(taskService service.TaskService, auth *middleware.Authenticator, clock service.Clock) *ExportHandler {
	return &ExportHandler{taskService: taskService, auth: auth, clock: clock}
}

func (h *ExportHandler) RegisterRoutes(router *gin.RouterGroup) {
	export := router.Group("/export", h.auth.Authenticate())
	{
		export.GET("/tasks.csv", h.ExportCSV)
		export.GET("/tasks.xlsx", h.ExportXLSX)
	}
}

// ExportCSV handles GET /export/tasks.csv
// @Summary      Export tasks as CSV
// @Description  Newest 500 tasks visible to the caller.
// @Tags         export
// @Produce      text/csv
// @Security     BearerAuth
// @Success      200
// @Router       /api/export/tasks.csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	rows, err := h.taskService.ExportRows(c.Request.Context(), middleware.CurrentActor(c), service.DefaultExportLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := exportTasksCSV(rows)
	if err != nil {
		respondError(c, err)
		return
	}
	h.attach(c, "csv")
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// ExportXLSX handles GET /export/tasks.xlsx
// @Summary      Export tasks as XLSX
// @Tags         export
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Success      200
// @Router       /api/export/tasks.xlsx [get]
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	rows, err := h.taskService.ExportRows(c.Request.Context(), middleware.CurrentActor(c), service.DefaultExportLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	data, err := exportTasksXLSX(rows)
	if err != nil {
		respondError(c, err)
		return
	}
	h.attach(c, "xlsx")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func (h *ExportHandler) attach(c *gin.Context, ext string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"tasks_%s.%s\"", h.clock.Today(), ext))
}

func exportTasksCSV(rows []service.ExportRow) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	_ = w.Write(exportHeader)
	for _, r := range rows {
		_ = w.Write([]string{
			r.OrderNo,
			r.ServiceType,
			r.CustomerName,
			r.AssignedTo,
			r.Status,
			r.TaskDate,
			r.PaidAmount.StringFixed(2),
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func exportTasksXLSX(rows []service.ExportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, err
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for col, v := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(exportSheet, cell, v)
	}
	for i, r := range rows {
		paid, _ := r.PaidAmount.Float64()
		values := []any{r.OrderNo, r.ServiceType, r.CustomerName, r.AssignedTo, r.Status, r.TaskDate, paid}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "B", 16)
	_ = f.SetColWidth(exportSheet, "C", "C", 28)
	_ = f.SetColWidth(exportSheet, "D", "G", 14)
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(exportSheet, "A1", "G1", style)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
