package v1

import (
	"errors"
	"fmt"
	"net/http"

	"confd/internal/server/api/middleware"
	"confd/internal/server/api/response"
	"confd/internal/server/service"
	"confd/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// getAllConfig handles retrieving the full masked configuration
func (api *API) getAllConfig(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	values, warn := api.service.GetAllConfig(ctx, middleware.GetActor(c))
	resp.SuccessWithWarning(gin.H{
		"config": values,
		"count":  len(values),
	}, warningOrNil(warn))
}

// getConfig handles retrieving a single masked value
func (api *API) getConfig(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	key := c.Param("key")
	value, warn, err := api.service.GetConfig(ctx, key, middleware.GetActor(c))
	if err != nil {
		if service.IsNotFound(err) {
			resp.NotFound(fmt.Errorf("config key %s not found", key))
			return
		}
		api.logger.Error("Failed to get config value",
			zap.Error(err), zap.String("key", key))
		resp.InternalError(errors.New("failed to get config value"))
		return
	}

	resp.SuccessWithWarning(gin.H{
		"key":   key,
		"value": value,
	}, warningOrNil(warn))
}

type updateConfigRequest struct {
	Key   string `json:"key" validate:"required,configkey"`
	Value string `json:"value" validate:"max=65536"`
}

// updateConfig handles creating or updating a value
func (api *API) updateConfig(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	var body updateConfigRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		resp.BadRequest(fmt.Errorf("invalid request body: %v", err))
		return
	}

	body.Key = c.Param("key")
	if err := api.validate.Struct(&body); err != nil {
		resp.BadRequest(err)
		return
	}

	key := body.Key
	result, warn, err := api.service.UpdateConfig(ctx, key, body.Value, middleware.GetActor(c))
	if err != nil {
		var verr *types.ValidationError
		var serr *types.SanitizationError
		switch {
		case errors.As(err, &verr):
			resp.ValidationError(err)
		case errors.As(err, &serr):
			resp.ValidationError(err)
		default:
			api.logger.Error("Failed to update config value",
				zap.Error(err), zap.String("key", key))
			resp.InternalError(errors.New("failed to update config value"))
		}
		return
	}

	resp.SuccessWithWarning(result, warningOrNil(warn))
}

// deleteConfig handles removing a key
func (api *API) deleteConfig(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	key := c.Param("key")
	warn, err := api.service.DeleteConfig(ctx, key, middleware.GetActor(c))
	if err != nil {
		var rerr *types.RequiredKeyError
		switch {
		case errors.As(err, &rerr):
			resp.Error(http.StatusForbidden, err)
		case service.IsNotFound(err):
			resp.NotFound(fmt.Errorf("config key %s not found", key))
		default:
			api.logger.Error("Failed to delete config value",
				zap.Error(err), zap.String("key", key))
			resp.InternalError(errors.New("failed to delete config value"))
		}
		return
	}

	resp.SuccessWithWarning(gin.H{"key": key, "deleted": true}, warningOrNil(warn))
}

// forceReload handles the reload trigger
func (api *API) forceReload(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	result, warn := api.service.ForceReload(ctx, middleware.GetActor(c))
	resp.SuccessWithWarning(result, warningOrNil(warn))
}

// warningOrNil turns a typed nil into a plain nil error
func warningOrNil(warn *types.LoggingFailure) error {
	if warn == nil {
		return nil
	}
	return warn
}
