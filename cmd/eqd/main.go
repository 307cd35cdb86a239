package main

import (
	"runtime/debug"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
)

func main() {
	boa.CmdT[boa.NoParams]{
		Use:     "eqd",
		Short:   "System audio equalizer service and control surface",
		Version: appVersion(),
		SubCmds: []*cobra.Command{
			ServeCmd(),
			StatusCmd(),
			InitCmd(),
			EnableCmd(),
			DisableCmd(),
			PresetsCmd(),
			PresetCmd(),
			BandsCmd(),
			BandCmd(),
			MoodCmd(),
		},
	}.Run()
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "unknown"
	}
	return bi.Main.Version
}

func defaultParamEnricher() boa.ParamEnricher {
	return boa.ParamEnricherCombine(
		boa.ParamEnricherBool,
		boa.ParamEnricherName,
		boa.ParamEnricherShort,
	)
}
