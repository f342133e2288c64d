package bootstrap

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/zipfx/zipfx/internal/bootstrap/patch"
	"github.com/zipfx/zipfx/internal/conf"
	"github.com/zipfx/zipfx/pkg/utils"
)

func safeCall(v string, i int, f func()) {
	defer func() {
		if r := recover(); r != nil {
			utils.Log.Errorf("Recovered from %s (index: %d) panic: %v", v, i, r)
		}
	}()

	f()
}

func getVersion(v string) (major, minor, patchNum int, err error) {
	_, err = fmt.Sscanf(v, "v%d.%d.%d", &major, &minor, &patchNum)
	return major, minor, patchNum, err
}

func compareVersion(majorA, minorA, patchNumA, majorB, minorB, patchNumB int) bool {
	if majorA != majorB {
		return majorA > majorB
	}
	if minorA != minorB {
		return minorA > minorB
	}
	if patchNumA != patchNumB {
		return patchNumA > patchNumB
	}
	return true
}

// InitUpgradePatch runs the config patches of every version newer than the
// last launched one and records the running version.
func InitUpgradePatch() {
	if conf.Version == "dev" {
		return
	}
	lastLaunchedVersion := conf.Conf.LastLaunchedVersion
	if lastLaunchedVersion == "" {
		lastLaunchedVersion = "v0.1.0"
	}
	if lastLaunchedVersion == conf.Version {
		return
	}
	runPatches(lastLaunchedVersion, patch.UpgradePatches)
	conf.Conf.LastLaunchedVersion = conf.Version
	if !utils.WriteJsonToFile(configPath(), conf.Conf) {
		log.Fatalf("failed to write config file")
	}
}

func runPatches(lastLaunchedVersion string, patches []patch.VersionPatches) {
	major, minor, patchNum, err := getVersion(lastLaunchedVersion)
	if err != nil {
		utils.Log.Warnf("Failed to parse last launched version %s: %v, skipping all patches and rewrite last launched version", lastLaunchedVersion, err)
		return
	}
	for _, vp := range patches {
		ma, mi, pn, err := getVersion(vp.Version)
		if err != nil {
			utils.Log.Errorf("Skip invalid version %s patches: %v", vp.Version, err)
			continue
		}
		if compareVersion(ma, mi, pn, major, minor, patchNum) {
			for i, p := range vp.Patches {
				safeCall("patch "+vp.Version, i, p)
			}
		}
	}
}
