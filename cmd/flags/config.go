package flags

var (
	DataDir    string
	ConfigPath string
	Debug      bool
	LogStd     bool
	NoPrefix   bool
)
