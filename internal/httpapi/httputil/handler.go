package httputil

import "github.com/gin-gonic/gin"

// RouteHandler mounts one resource group. pub is open to any caller,
// cron is the group guarded by the trigger secret.
type RouteHandler interface {
	Root() string
	SetRoutes(pub *gin.RouterGroup, cron *gin.RouterGroup)
}
