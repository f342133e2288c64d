package conf

import "github.com/zipfx/zipfx/internal/model"

// ApplyDefaults fills the settings a caller left unset on info from the
// configured archive defaults.
func ApplyDefaults(info *model.ArchiveInfo) {
	if info == nil || Conf == nil {
		return
	}
	if info.CompressionLevel == model.DefaultCompressionLevel {
		info.CompressionLevel = Conf.Defaults.CompressionLevel
	}
	if info.GetString(model.PropCompressionMethod) == "" && Conf.Defaults.CompressionMethod != "" {
		info.SetProperty(model.PropCompressionMethod, Conf.Defaults.CompressionMethod)
	}
	if info.GetString(model.PropEncryption) == "" && Conf.Defaults.Encryption != "" {
		info.SetProperty(model.PropEncryption, Conf.Defaults.Encryption)
	}
}
