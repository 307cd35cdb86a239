package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/cockroachdb/errors"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/satindergrewal/eqd/internal/bridge"
	"github.com/satindergrewal/eqd/internal/config"
	"github.com/satindergrewal/eqd/internal/effect"
	"github.com/satindergrewal/eqd/internal/eqerr"
	"github.com/satindergrewal/eqd/internal/facade"
	"github.com/satindergrewal/eqd/internal/logging"
	"github.com/satindergrewal/eqd/internal/mood"
	"github.com/satindergrewal/eqd/internal/rpc"
)

// connect resolves the control surface for this process: the bridge to the
// background service, started on demand, or the unsupported stand-in.
func connect(cfg config.Config, log zerolog.Logger) facade.Equalizer {
	return facade.New(facade.Supported(cfg.Platform), func() facade.Equalizer {
		binder := rpc.NewBinder(cfg.ServiceURL, rpc.BinderOptions{
			Start:   startDaemon,
			Timeout: cfg.BindTimeout,
			Logger:  log,
		})
		log.Debug().Str("surface", binder.Surface()).Str("service", cfg.ServiceURL).Msg("control surface")
		return bridge.New(binder, bridge.Options{Grace: cfg.BindGrace, Logger: log})
	}, log)
}

// startDaemon launches "eqd serve" in its own session, so it outlives this
// process and the terminal it runs in.
func startDaemon(context.Context) error {
	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "locate executable")
	}
	cmd := exec.Command(exe, "serve")
	cmd.Env = os.Environ()
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "start eqd serve")
	}
	return cmd.Process.Release()
}

// control runs fn against the control surface and exits non-zero on error.
func control(fn func(ctx context.Context, eq facade.Equalizer, w io.Writer) error) {
	cfg := config.Load()
	log := logging.New(os.Stderr, cfg.LogLevel)
	eq := connect(cfg, log)

	if err := fn(context.Background(), eq, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func StatusCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:         "status",
		Short:       "Show equalizer state and band levels",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(_ *boa.NoParams, cmd *cobra.Command, args []string) {
			control(runStatus)
		},
	}.ToCobra()
}

type InitParams struct {
	Session int `pos:"true" required:"true" help:"Audio session id to attach to (0 is the global mix)."`
}

func InitCmd() *cobra.Command {
	return boa.CmdT[InitParams]{
		Use:         "init",
		Short:       "Attach the equalizer to an audio session",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *InitParams, cmd *cobra.Command, args []string) {
			control(func(ctx context.Context, eq facade.Equalizer, w io.Writer) error {
				return runInit(ctx, eq, w, params.Session)
			})
		},
	}.ToCobra()
}

func EnableCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:         "enable",
		Short:       "Turn equalization on",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(_ *boa.NoParams, cmd *cobra.Command, args []string) {
			control(func(ctx context.Context, eq facade.Equalizer, w io.Writer) error {
				return runSetEnabled(ctx, eq, w, true)
			})
		},
	}.ToCobra()
}

func DisableCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:         "disable",
		Short:       "Turn equalization off",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(_ *boa.NoParams, cmd *cobra.Command, args []string) {
			control(func(ctx context.Context, eq facade.Equalizer, w io.Writer) error {
				return runSetEnabled(ctx, eq, w, false)
			})
		},
	}.ToCobra()
}

func PresetsCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:         "presets",
		Short:       "List the equalizer presets",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(_ *boa.NoParams, cmd *cobra.Command, args []string) {
			control(runPresets)
		},
	}.ToCobra()
}

type PresetParams struct {
	ID int `pos:"true" required:"true" help:"Preset id, see 'eqd presets'."`
}

func PresetCmd() *cobra.Command {
	return boa.CmdT[PresetParams]{
		Use:         "preset",
		Short:       "Apply a preset",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *PresetParams, cmd *cobra.Command, args []string) {
			control(func(ctx context.Context, eq facade.Equalizer, w io.Writer) error {
				return runUsePreset(ctx, eq, w, params.ID)
			})
		},
	}.ToCobra()
}

func BandsCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:         "bands",
		Short:       "List bands with frequency ranges and levels",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(_ *boa.NoParams, cmd *cobra.Command, args []string) {
			control(runBands)
		},
	}.ToCobra()
}

type BandParams struct {
	Band  int `pos:"true" required:"true" help:"Band id, see 'eqd bands'."`
	Level int `short:"l" required:"true" help:"Level in millibel, clamped to the band level range."`
}

func BandCmd() *cobra.Command {
	return boa.CmdT[BandParams]{
		Use:         "band",
		Short:       "Set the level of one band",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *BandParams, cmd *cobra.Command, args []string) {
			control(func(ctx context.Context, eq facade.Equalizer, w io.Writer) error {
				return runSetBand(ctx, eq, w, params.Band, params.Level)
			})
		},
	}.ToCobra()
}

type MoodParams struct {
	Mood string `pos:"true" required:"true" help:"Listening mood, see the list above."`
}

func MoodCmd() *cobra.Command {
	return boa.CmdT[MoodParams]{
		Use:         "mood",
		Short:       "Apply the preset that fits a mood",
		Long:        "Apply the preset that fits a mood.\nMoods: " + strings.Join(mood.Names(), ", "),
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *MoodParams, cmd *cobra.Command, args []string) {
			control(func(ctx context.Context, eq facade.Equalizer, w io.Writer) error {
				return runMood(ctx, eq, w, params.Mood)
			})
		},
	}.ToCobra()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func runStatus(ctx context.Context, eq facade.Equalizer, w io.Writer) error {
	on, err := eq.IsEnabled(ctx)
	if err != nil {
		return err
	}
	current, err := eq.CurrentPreset(ctx)
	if err != nil {
		return err
	}
	presetName := "custom"
	if current != effect.NoPreset {
		if presetName, err = eq.PresetName(ctx, current); err != nil {
			return err
		}
	}
	bands, err := eq.AllBandLevels(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Equalizer: %s\n", onOff(on))
	fmt.Fprintf(w, "Preset:    %s\n", presetName)
	renderBandLevels(w, bands)
	return nil
}

func renderBandLevels(w io.Writer, bands []effect.BandLevel) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Band", "Center", "Level (mB)"})
	for _, b := range bands {
		t.AppendRow(table.Row{b.ID, formatHz(b.CenterFreq), b.Level})
	}
	t.Render()
}

func formatHz(hz int) string {
	if hz >= 1000 {
		return fmt.Sprintf("%.1f kHz", float64(hz)/1000)
	}
	return fmt.Sprintf("%d Hz", hz)
}

func runInit(ctx context.Context, eq facade.Equalizer, w io.Writer, session int) error {
	ok, err := eq.Initialize(ctx, session)
	if err != nil {
		return err
	}
	if !ok {
		if facade.IsUnsupported(eq) {
			fmt.Fprintln(w, "Equalizer not available on this platform")
			return nil
		}
		return errors.Mark(errors.Newf("equalizer not attached to session %d", session), eqerr.ErrOperationFailed)
	}
	fmt.Fprintf(w, "Equalizer attached (requested session %d)\n", session)
	return nil
}

func runSetEnabled(ctx context.Context, eq facade.Equalizer, w io.Writer, on bool) error {
	if _, err := eq.SetEnabled(ctx, on); err != nil {
		return err
	}
	now, err := eq.IsEnabled(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Equalizer: %s\n", onOff(now))
	return nil
}

func runPresets(ctx context.Context, eq facade.Equalizer, w io.Writer) error {
	presets, err := eq.AllPresets(ctx)
	if err != nil {
		return err
	}
	current, err := eq.CurrentPreset(ctx)
	if err != nil {
		return err
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "Name", ""})
	for _, p := range presets {
		t.AppendRow(table.Row{p.ID, p.Name, lo.Ternary(p.ID == current, "*", "")})
	}
	t.Render()
	return nil
}

func runUsePreset(ctx context.Context, eq facade.Equalizer, w io.Writer, id int) error {
	if _, err := eq.UsePreset(ctx, id); err != nil {
		return err
	}
	name, err := eq.PresetName(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Preset: %s\n", name)
	return nil
}

func runBands(ctx context.Context, eq facade.Equalizer, w io.Writer) error {
	bands, err := eq.AllBandLevels(ctx)
	if err != nil {
		return err
	}
	rng, err := eq.BandLevelRange(ctx)
	if err != nil {
		return err
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Band", "Center", "Range", "Level (mB)"})
	for _, b := range bands {
		fr, err := eq.BandFreqRange(ctx, b.ID)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{b.ID, formatHz(b.CenterFreq), formatHz(fr.Low) + " - " + formatHz(fr.High), b.Level})
	}
	t.AppendFooter(table.Row{"", "", "Level range", fmt.Sprintf("%d..%d", rng.Min, rng.Max)})
	t.Render()
	return nil
}

func runSetBand(ctx context.Context, eq facade.Equalizer, w io.Writer, band, level int) error {
	if _, err := eq.SetBandLevel(ctx, band, level); err != nil {
		return err
	}
	now, err := eq.BandLevel(ctx, band)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Band %d: %d mB\n", band, now)
	return nil
}

func runMood(ctx context.Context, eq facade.Equalizer, w io.Writer, name string) error {
	if !mood.IsValid(name) {
		return errors.Wrapf(mood.ErrUnknownMood, "%q (choose from %s)", name, strings.Join(mood.Names(), ", "))
	}
	presets, err := eq.AllPresets(ctx)
	if err != nil {
		return err
	}
	p, err := mood.Resolve(name, presets)
	if err != nil {
		return err
	}
	if _, err := eq.UsePreset(ctx, p.ID); err != nil {
		return err
	}
	fmt.Fprintf(w, "Mood %s: preset %s\n", name, p.Name)
	return nil
}
