package server

import (
	"github.com/gin-gonic/gin"
	"github.com/zipfx/zipfx/internal/bus"
	"github.com/zipfx/zipfx/internal/conf"
	"github.com/zipfx/zipfx/internal/op"
	"github.com/zipfx/zipfx/internal/recent"
	"github.com/zipfx/zipfx/internal/stream"
	"github.com/zipfx/zipfx/server/common"
	"github.com/zipfx/zipfx/server/handles"
	"github.com/zipfx/zipfx/server/middlewares"
)

// Init registers the archive API on e.
func Init(e *gin.Engine, c *op.Coordinator, b *bus.Bus, r *recent.List) {
	handles.Init(c, r)
	handles.InitEvents(b)

	maxConnections := 0
	if conf.Conf != nil {
		maxConnections = conf.Conf.MaxConnections
	}
	e.GET("/ping", func(c *gin.Context) {
		c.String(200, "pong")
	})
	e.NoRoute(func(c *gin.Context) {
		common.ErrorStrResp(c, "not found", 404)
	})

	api := e.Group("/api")
	api.GET("/events", handles.Events)

	recents := api.Group("/recent")
	recents.GET("", handles.RecentList)
	recents.POST("/clear", handles.RecentClear)

	archive := api.Group("/archive", middlewares.MaxAllowed(maxConnections))
	archive.GET("/formats", handles.ArchiveFormats)
	archive.GET("/sessions", handles.ArchiveSessions)
	archive.POST("/open", handles.ArchiveOpen)
	archive.POST("/create", handles.ArchiveCreate)
	archive.POST("/close", handles.ArchiveClose)
	archive.Any("/list", handles.ArchiveList)
	archive.POST("/navigate", handles.ArchiveNavigate)
	archive.POST("/add", handles.ArchiveAdd)
	archive.POST("/delete", handles.ArchiveDelete)
	archive.POST("/copy", handles.ArchiveCopy)
	archive.POST("/move", handles.ArchiveMove)
	archive.POST("/extract", handles.ArchiveExtract)
	archive.Any("/test", handles.ArchiveTest)
	archive.GET("/download", middlewares.DownloadRateLimiter(stream.ExtractLimit), handles.ArchiveDownload)

	migration := archive.Group("/migration")
	migration.POST("/start", handles.ArchiveStartMigration)
	migration.POST("/paste", handles.ArchivePaste)
	migration.POST("/confirm_delete", handles.ArchiveConfirmDelete)
	migration.POST("/cancel", handles.ArchiveCancelMigration)

	nested := archive.Group("/nested")
	nested.POST("/open", handles.ArchiveOpenNested)
	nested.POST("/reintegrate", handles.ArchiveReintegrate)
}
