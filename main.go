// main.go - Command line entry point for the gbsengine GBS player

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

func boilerPlate(w io.Writer) {
	fmt.Fprintln(w, "\n\033[38;2;255;20;147mgbsengine\033[0m - Game Boy Sound player")
	fmt.Fprintln(w, "(c) 2024 - 2026 Zayn Otley")
	fmt.Fprintln(w, "https://github.com/IntuitionAmiga/IntuitionEngine")
	fmt.Fprintln(w, "License: GPLv3 or later")
}

// secondsValue accepts plain seconds ("90", "1.5") or a Go duration ("2m")
type secondsValue struct {
	d *time.Duration
}

func (s secondsValue) String() string {
	if s.d == nil {
		return ""
	}
	return strconv.FormatFloat(s.d.Seconds(), 'f', -1, 64)
}

func (s secondsValue) Set(v string) error {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return fmt.Errorf("negative time %q", v)
		}
		*s.d = time.Duration(secs * float64(time.Second))
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fmt.Errorf("invalid time %q", v)
	}
	*s.d = d
	return nil
}

var errNoStatusWindow = errors.New("status window: not available in headless builds")

type cliOptions struct {
	cfg        GBSConfig
	file       string
	configPath string
	info       bool
}

// parseCommandLine layers defaults, the Lua rc file and the flags that were
// given explicitly, in that order
func parseCommandLine(args []string, usage io.Writer) (cliOptions, error) {
	var (
		opts     cliOptions
		order    string
		mute     string
		verbose  bool
		quiet    bool
		noConfig bool
	)
	flagCfg := DefaultGBSConfig()
	opts.configPath = DefaultConfigPath()

	flagSet := flag.NewFlagSet("gbsengine", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.IntVar(&flagCfg.Rate, "rate", flagCfg.Rate, "Output sample rate in Hz")
	flagSet.Var(secondsValue{&flagCfg.SubsongTimeout}, "t", "Subsong timeout in seconds (0 plays forever)")
	flagSet.Var(secondsValue{&flagCfg.SilenceTimeout}, "T", "Silence timeout in seconds (0 disables)")
	flagSet.Var(secondsValue{&flagCfg.Fadeout}, "f", "Fadeout in seconds")
	flagSet.StringVar(&order, "order", "linear", "Play order: linear, shuffle or random")
	flagSet.BoolVar(&flagCfg.Loop, "loop", false, "Loop the play order")
	flagSet.Int64Var(&flagCfg.Seed, "seed", flagCfg.Seed, "Shuffle seed")
	flagSet.StringVar(&mute, "mute", "", "Channels to mute, e.g. 1,3")
	flagSet.StringVar(&flagCfg.Output, "output", flagCfg.Output, "Output: oto, wav, vgm or null")
	flagSet.StringVar(&flagCfg.OutputPath, "o", "", "Output file for wav and vgm (%d expands to the subsong)")
	flagSet.StringVar(&flagCfg.UI, "ui", flagCfg.UI, "User interface: term, window or none")
	flagSet.StringVar(&opts.configPath, "config", opts.configPath, "Lua config file")
	flagSet.BoolVar(&noConfig, "no-config", false, "Skip the Lua config file")
	flagSet.StringVar(&flagCfg.M3U, "m3u", "", "Extended M3U playlist with subsong titles and lengths")
	flagSet.IntVar(&flagCfg.BufferFrames, "buffer", flagCfg.BufferFrames, "Frames per PCM buffer")
	flagSet.BoolVar(&opts.info, "info", false, "Print the file header and exit")
	flagSet.BoolVar(&verbose, "v", false, "Verbose logging")
	flagSet.BoolVar(&quiet, "q", false, "Suppress warnings")

	flagSet.Usage = func() {
		flagSet.SetOutput(usage)
		fmt.Fprintln(usage, "Usage: gbsengine [flags] file.gbs [start [stop]]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if flagSet.NArg() < 1 || flagSet.NArg() > 3 {
		flagSet.Usage()
		return opts, errors.New("expected a GBS file and optional start and stop subsongs")
	}
	opts.file = flagSet.Arg(0)

	opts.cfg = DefaultGBSConfig()
	if noConfig {
		opts.configPath = ""
	}
	if err := LoadLuaConfigFile(opts.configPath, &opts.cfg); err != nil {
		return opts, err
	}

	cfg := &opts.cfg
	var flagErr error
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rate":
			cfg.Rate = flagCfg.Rate
		case "t":
			cfg.SubsongTimeout = flagCfg.SubsongTimeout
		case "T":
			cfg.SilenceTimeout = flagCfg.SilenceTimeout
		case "f":
			cfg.Fadeout = flagCfg.Fadeout
		case "order":
			mode, err := ParseGBSOrderMode(order)
			if err != nil {
				flagErr = errors.Join(flagErr, err)
			}
			cfg.Order = mode
		case "loop":
			cfg.Loop = flagCfg.Loop
		case "seed":
			cfg.Seed = flagCfg.Seed
		case "mute":
			m, err := ParseMuteList(mute)
			if err != nil {
				flagErr = errors.Join(flagErr, err)
			}
			cfg.Mute = m
		case "output":
			cfg.Output = flagCfg.Output
		case "o":
			cfg.OutputPath = flagCfg.OutputPath
		case "ui":
			cfg.UI = flagCfg.UI
		case "m3u":
			cfg.M3U = flagCfg.M3U
		case "buffer":
			cfg.BufferFrames = flagCfg.BufferFrames
		case "v":
			cfg.Verbosity = gbLogInfo
		case "q":
			cfg.Verbosity = gbLogQuiet
		}
	})
	if flagErr != nil {
		return opts, flagErr
	}

	for i, dst := range []*int{&cfg.StartSong, &cfg.StopSong} {
		if flagSet.NArg() <= i+1 {
			break
		}
		n, err := strconv.Atoi(flagSet.Arg(i + 1))
		if err != nil || n < 1 {
			return opts, fmt.Errorf("invalid subsong %q", flagSet.Arg(i+1))
		}
		*dst = n
	}
	return opts, validateConfig(*cfg)
}

func validateConfig(cfg GBSConfig) error {
	if cfg.Rate < 8000 || cfg.Rate > 192000 {
		return fmt.Errorf("sample rate %d out of range 8000..192000", cfg.Rate)
	}
	if cfg.BufferFrames < 64 {
		return fmt.Errorf("buffer of %d frames is below 64", cfg.BufferFrames)
	}
	switch cfg.Output {
	case "oto", "null":
	case "wav", "vgm":
		if cfg.OutputPath == "" {
			return fmt.Errorf("-output %s needs -o path", cfg.Output)
		}
	default:
		return fmt.Errorf("unknown output %q (want oto, wav, vgm or null)", cfg.Output)
	}
	switch cfg.UI {
	case "term", "window", "none":
	default:
		return fmt.Errorf("unknown ui %q (want term, window or none)", cfg.UI)
	}
	return nil
}

// playlistPath returns the -m3u path, or a playlist next to the GBS file
// sharing its base name
func playlistPath(cfg GBSConfig, file string) string {
	if cfg.M3U != "" {
		return cfg.M3U
	}
	candidate := strings.TrimSuffix(file, filepath.Ext(file)) + ".m3u"
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ""
}

func printInfo(w io.Writer, path string, file *GBSFile, pl *GBSPlaylist) {
	h := file.Header
	fmt.Fprintf(w, "File:      %s\n", path)
	fmt.Fprintf(w, "Title:     %s\n", h.Title)
	fmt.Fprintf(w, "Author:    %s\n", h.Author)
	fmt.Fprintf(w, "Copyright: %s\n", h.Copyright)
	fmt.Fprintf(w, "Load:      0x%04X  Init: 0x%04X  Play: 0x%04X  Stack: 0x%04X\n", h.Load, h.Init, h.Play, h.Stack)
	driver := "vblank"
	if file.UsesTimer() {
		driver = "timer"
	}
	fmt.Fprintf(w, "TMA/TAC:   0x%02X/0x%02X (%s)\n", h.TMA, h.TAC, driver)
	fmt.Fprintf(w, "Subsongs:  %d (default %d)\n", h.Songs, h.FirstSong)
	for i := 1; i <= h.Songs; i++ {
		track, ok := pl.Lookup(i)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %3d  %s  %s\n", i, formatClock(track.Length), track.Title)
	}
}

// printVGMInfo summarises a rip written by the vgm output
func printVGMInfo(w io.Writer, path string) error {
	vgm, err := ParseVGMFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(w, "File:      %s\n", path)
	fmt.Fprintf(w, "Title:     %s\n", vgm.Title())
	fmt.Fprintf(w, "Version:   %X.%02X\n", vgm.Version>>8, vgm.Version&0xFF)
	fmt.Fprintf(w, "DMG clock: %d Hz\n", vgm.ClockHz)
	length := time.Duration(vgm.TotalSamples) * time.Second / vgmSampleRate
	fmt.Fprintf(w, "Length:    %s (%d samples)\n", formatClock(length), vgm.TotalSamples)
	fmt.Fprintf(w, "Writes:    %d\n", len(vgm.Events))
	return nil
}

// addOutputSink wires the configured output and returns a function that
// releases the audio device
func addOutputSink(ctx context.Context, p *GBSPlayer, file *GBSFile, cfg GBSConfig) (func(), error) {
	switch cfg.Output {
	case "oto":
		device, err := NewOtoPlayer(cfg.Rate, cfg.BufferFrames)
		if err != nil {
			return nil, fmt.Errorf("audio: %w", err)
		}
		queue := newPCMQueue(ctx, 4)
		device.SetupPlayer(queue)
		device.Start()
		p.AddSink(queue)
		latency := time.Duration(cfg.BufferFrames) * time.Second / time.Duration(cfg.Rate)
		return func() {
			// The player closes the queue first; let the device play its tail
			if queue.WaitDrained(2 * time.Second) {
				time.Sleep(latency)
			}
			device.Close()
		}, nil
	case "wav":
		p.AddSink(newWAVSink(cfg.OutputPath, cfg.Rate))
	case "vgm":
		p.AddSink(newVGMSink(cfg.OutputPath, file.Header))
	}
	return func() {}, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseCommandLine(args, stdout)
	if err != nil {
		return err
	}
	cfg := opts.cfg
	log := newGBLogger(stderr, cfg.Verbosity)

	if opts.info && isVGMPath(opts.file) {
		return printVGMInfo(stdout, opts.file)
	}
	file, err := ParseGBSFile(opts.file, log)
	if err != nil {
		return err
	}
	var playlist *GBSPlaylist
	if path := playlistPath(cfg, opts.file); path != "" {
		if playlist, err = ParseM3UFile(path); err != nil {
			return err
		}
	}
	if opts.info {
		printInfo(stdout, opts.file, file, playlist)
		return nil
	}

	player, err := NewGBSPlayer(file, cfg, playlist, log)
	if err != nil {
		return err
	}
	release, err := addOutputSink(ctx, player, file, cfg)
	if err != nil {
		return err
	}
	defer release()
	if cfg.Order == GBSOrderShuffle {
		log.Infof("player", "shuffle seed %d", player.Seed())
	}

	cmds := make(chan GBSCommand, 8)
	board := newStatusBoard()
	name := filepath.Base(opts.file)

	runErr := runWithUI(ctx, cfg.UI, player, name, cmds, board, stdout, log)
	return errors.Join(runErr, player.Close())
}

// runWithUI steps the player on its own goroutine while the UI owns the
// calling one. Without a UI the player runs inline.
func runWithUI(ctx context.Context, ui string, p *GBSPlayer, name string, cmds chan GBSCommand, board *statusBoard, stdout io.Writer, log *gbLogger) error {
	if ui == "none" {
		return p.Run(ctx, name, cmds, nil)
	}

	uiCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx, name, cmds, board)
	}()

	var uiErr error
	if ui == "window" {
		uiErr = NewStatusWindow(board, cmds, p.file.Header).Run(uiCtx)
		if errors.Is(uiErr, errNoStatusWindow) {
			log.Warnf("ui", "%v, using the terminal", uiErr)
			ui = "term"
			uiErr = nil
		}
	}
	if ui == "term" {
		uiErr = newTerminalUI(stdout, board, cmds).Run(uiCtx, p.file.Header)
	}
	// A closed UI ends the session
	sendCommand(cmds, GBSCommand{Kind: GBSCmdQuit})
	return errors.Join(uiErr, <-errCh)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !hasFlag(os.Args[1:], "-q") {
		boilerPlate(os.Stderr)
	}
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, flag.ErrHelp):
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name || a == "-"+name {
			return true
		}
	}
	return false
}
