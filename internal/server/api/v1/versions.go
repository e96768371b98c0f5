package v1

import (
	"errors"
	"fmt"

	"confd/internal/server/api/middleware"
	"confd/internal/server/api/response"
	"confd/internal/server/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// createVersion handles snapshotting the current configuration
func (api *API) createVersion(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	var body struct {
		Description string   `json:"description"`
		Tags        []string `json:"tags"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		resp.BadRequest(fmt.Errorf("invalid request body: %v", err))
		return
	}

	snap, err := api.service.CreateVersion(ctx, body.Description, body.Tags, middleware.GetActor(c))
	if err != nil {
		api.logger.Error("Failed to create version", zap.Error(err))
		resp.InternalError(errors.New("failed to create version"))
		return
	}

	resp.Created(snap.Meta())
}

// listVersions handles listing version metadata
func (api *API) listVersions(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	versions := api.service.ListVersions(ctx)
	resp.Success(gin.H{
		"versions": versions,
		"count":    len(versions),
	})
}

// getVersion handles retrieving one version with its masked payload
func (api *API) getVersion(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	id := c.Param("id")
	snap, err := api.service.GetVersion(ctx, id)
	if err != nil {
		if service.IsNotFound(err) {
			resp.NotFound(fmt.Errorf("version %s not found", id))
			return
		}
		api.logger.Error("Failed to get version",
			zap.Error(err), zap.String("id", id))
		resp.InternalError(errors.New("failed to get version"))
		return
	}

	resp.Success(snap)
}

// compareVersions handles diffing two versions
func (api *API) compareVersions(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		resp.BadRequest(errors.New("from and to are required"))
		return
	}

	diff, err := api.service.CompareVersions(ctx, from, to)
	if err != nil {
		if service.IsNotFound(err) {
			resp.NotFound(err)
			return
		}
		api.logger.Error("Failed to compare versions",
			zap.Error(err), zap.String("from", from), zap.String("to", to))
		resp.InternalError(errors.New("failed to compare versions"))
		return
	}

	resp.Success(gin.H{
		"from": from,
		"to":   to,
		"diff": diff,
	})
}

// rollbackVersion handles restoring a previous version
func (api *API) rollbackVersion(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	id := c.Param("id")
	result, warn, err := api.service.RollbackVersion(ctx, id, middleware.GetActor(c))
	if err != nil {
		if service.IsNotFound(err) {
			resp.NotFound(fmt.Errorf("version %s not found", id))
			return
		}
		api.logger.Error("Failed to rollback version",
			zap.Error(err), zap.String("id", id))
		resp.InternalError(errors.New("failed to rollback version"))
		return
	}

	resp.SuccessWithWarning(result, warningOrNil(warn))
}
