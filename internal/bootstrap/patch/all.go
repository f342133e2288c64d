package patch

import "github.com/zipfx/zipfx/internal/bootstrap/patch/v0_2_0"

type VersionPatches struct {
	Version string
	Patches []func()
}

var UpgradePatches = []VersionPatches{
	{
		Version: "v0.2.0",
		Patches: []func(){
			v0_2_0.RenameDisabledProviders,
			v0_2_0.FillWriteTimeout,
		},
	},
}
