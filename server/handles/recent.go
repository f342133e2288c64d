package handles

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/server/common"
)

func addRecent(path string) {
	if recents == nil {
		return
	}
	if err := recents.Add(path); err != nil {
		log.Warnf("failed to record recent archive %s: %v", path, err)
	}
}

func RecentList(c *gin.Context) {
	paths, err := recents.Load()
	if err != nil {
		common.ErrorResp(c, err, 500, true)
		return
	}
	if paths == nil {
		paths = []string{}
	}
	common.SuccessResp(c, paths)
}

func RecentClear(c *gin.Context) {
	if err := recents.Clear(); err != nil {
		common.ErrorResp(c, err, 500, true)
		return
	}
	common.SuccessResp(c)
}
