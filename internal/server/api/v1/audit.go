package v1

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"confd/internal/audit"
	"confd/internal/server/api/response"
	"confd/internal/storage"
	"confd/internal/types"
	"confd/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// queryAudit handles filtered, paginated audit queries
func (api *API) queryAudit(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	var params struct {
		StartDate string `form:"start_date"`
		EndDate   string `form:"end_date"`
		Action    string `form:"action"`
		Key       string `form:"key"`
		UserID    string `form:"user_id"`
		Limit     int    `form:"limit" binding:"omitempty,gte=0"`
		Offset    int    `form:"offset" binding:"omitempty,gte=0"`
	}
	if err := c.ShouldBindQuery(&params); err != nil {
		resp.BadRequest(fmt.Errorf("invalid query parameters: %v", err))
		return
	}

	query := &storage.AuditQuery{
		Action: types.AuditAction(params.Action),
		Key:    params.Key,
		UserID: params.UserID,
		Limit:  params.Limit,
		Offset: params.Offset,
	}

	if params.StartDate != "" {
		t, err := utils.ParseTime(params.StartDate)
		if err != nil {
			resp.BadRequest(fmt.Errorf("invalid start_date format: %v", err))
			return
		}
		query.StartDate = t
	}
	if params.EndDate != "" {
		t, err := utils.ParseTime(params.EndDate)
		if err != nil {
			resp.BadRequest(fmt.Errorf("invalid end_date format: %v", err))
			return
		}
		query.EndDate = t
	}

	entries, err := api.service.QueryAuditLogs(ctx, query)
	if err != nil {
		api.logger.Error("Failed to query audit logs", zap.Error(err))
		resp.InternalError(errors.New("failed to query audit logs"))
		return
	}

	resp.Success(gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// auditStatistics handles audit aggregation
func (api *API) auditStatistics(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := api.service.AuditStatistics(ctx)
	if err != nil {
		api.logger.Error("Failed to compute audit statistics", zap.Error(err))
		resp.InternalError(errors.New("failed to compute audit statistics"))
		return
	}

	resp.Success(stats)
}

// exportAudit streams the audit trail as a downloadable file
func (api *API) exportAudit(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	var params struct {
		Format    string `form:"format" json:"format" validate:"exportformat"`
		StartDate string `form:"start_date"`
		EndDate   string `form:"end_date"`
	}
	if err := c.ShouldBindQuery(&params); err != nil {
		resp.BadRequest(fmt.Errorf("invalid export parameters: %v", err))
		return
	}
	if err := api.validate.Struct(&params); err != nil {
		resp.BadRequest(err)
		return
	}

	format := params.Format
	if format == "" {
		format = string(audit.FormatJSON)
	}
	opts := audit.ExportOptions{Format: audit.ExportFormat(format)}

	if params.StartDate != "" {
		t, err := utils.ParseTime(params.StartDate)
		if err != nil {
			resp.BadRequest(fmt.Errorf("invalid start_date format: %v", err))
			return
		}
		opts.StartDate = t
	}
	if params.EndDate != "" {
		t, err := utils.ParseTime(params.EndDate)
		if err != nil {
			resp.BadRequest(fmt.Errorf("invalid end_date format: %v", err))
			return
		}
		opts.EndDate = t
	}

	filename := fmt.Sprintf("audit_logs_%s.%s", time.Now().Format("20060102"), format)
	tmpFile, err := os.CreateTemp("", "confd-export-*")
	if err != nil {
		api.logger.Error("Failed to create export file", zap.Error(err))
		resp.InternalError(errors.New("failed to export audit logs"))
		return
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if err := api.service.ExportAuditLogs(ctx, tmpFile, opts); err != nil {
		_ = tmpFile.Close()
		api.logger.Error("Failed to export audit logs",
			zap.Error(err), zap.String("format", format))
		resp.InternalError(errors.New("failed to export audit logs"))
		return
	}
	if err := tmpFile.Close(); err != nil {
		api.logger.Error("Failed to flush export file", zap.Error(err))
		resp.InternalError(errors.New("failed to export audit logs"))
		return
	}

	c.Header("Content-Type", utils.GetContentType(format))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filepath.Base(filename)))
	resp.File(tmpPath)
}
