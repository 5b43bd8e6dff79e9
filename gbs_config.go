package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

const gbsConfigFileName = ".gbsplayrc.lua"

// GBSConfig holds every player setting. Defaults are overridden by the Lua
// rc file, which is in turn overridden by command line flags.
type GBSConfig struct {
	Rate           int
	SubsongTimeout time.Duration // 0 plays forever
	SilenceTimeout time.Duration // 0 disables silence detection
	Fadeout        time.Duration
	Order          GBSOrderMode
	Loop           bool
	Seed           int64
	Mute           [gbChannels]bool
	Output         string // oto, wav, vgm or null
	OutputPath     string
	UI             string // term, window or none
	Verbosity      gbLogLevel
	BufferFrames   int
	Refresh        time.Duration
	StartSong      int // 1-based, 0 uses the file default
	StopSong       int // 1-based, 0 plays to the last subsong
	M3U            string
}

func DefaultGBSConfig() GBSConfig {
	return GBSConfig{
		Rate:           44100,
		SubsongTimeout: 2 * time.Minute,
		SilenceTimeout: 2 * time.Second,
		Fadeout:        3 * time.Second,
		Order:          GBSOrderLinear,
		Seed:           time.Now().UnixNano(),
		Output:         "oto",
		UI:             "term",
		Verbosity:      gbLogWarn,
		BufferFrames:   gbDefaultSamples,
		Refresh:        10 * time.Millisecond,
	}
}

// DefaultConfigPath returns ~/.gbsplayrc.lua, or "" without a home directory
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, gbsConfigFileName)
}

func newConfigLuaState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.TabLibName, lua.OpenTable},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	return L
}

// LoadLuaConfigFile evaluates an rc file and applies its globals to cfg. A
// missing file is not an error.
func LoadLuaConfigFile(path string, cfg *GBSConfig) error {
	if path == "" {
		return nil
	}
	src, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := LoadLuaConfig(string(src), cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadLuaConfig evaluates Lua source and copies the recognised globals into
// cfg. Times are given in seconds.
func LoadLuaConfig(src string, cfg *GBSConfig) error {
	L := newConfigLuaState()
	defer L.Close()
	if err := L.DoString(src); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var errs []string
	fail := func(name string, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", name, err))
	}

	if v, ok := luaNumber(L, "rate"); ok {
		if v < 8000 || v > 192000 {
			fail("rate", fmt.Errorf("%v out of range 8000..192000", v))
		} else {
			cfg.Rate = int(v)
		}
	}
	if v, ok := luaNumber(L, "subsong_timeout"); ok {
		cfg.SubsongTimeout = luaSeconds(v)
	}
	if v, ok := luaNumber(L, "silence_timeout"); ok {
		cfg.SilenceTimeout = luaSeconds(v)
	}
	if v, ok := luaNumber(L, "fadeout"); ok {
		cfg.Fadeout = luaSeconds(v)
	}
	if v, ok := luaNumber(L, "seed"); ok {
		cfg.Seed = int64(v)
	}
	if v, ok := luaNumber(L, "verbosity"); ok {
		cfg.Verbosity = gbLogLevel(min(max(int(v), int(gbLogQuiet)), int(gbLogDebug)))
	}
	if v, ok := luaNumber(L, "buffer_frames"); ok {
		if v < 64 {
			fail("buffer_frames", fmt.Errorf("%v below 64", v))
		} else {
			cfg.BufferFrames = int(v)
		}
	}
	if v, ok := luaString(L, "order"); ok {
		mode, err := ParseGBSOrderMode(v)
		if err != nil {
			fail("order", err)
		} else {
			cfg.Order = mode
		}
	}
	if v, ok := luaString(L, "output"); ok {
		cfg.Output = v
	}
	if v, ok := luaString(L, "ui"); ok {
		cfg.UI = v
	}
	if v := L.GetGlobal("loop"); v != lua.LNil {
		cfg.Loop = lua.LVAsBool(v)
	}

	switch v := L.GetGlobal("mute").(type) {
	case *lua.LTable:
		var mute [gbChannels]bool
		v.ForEach(func(_, value lua.LValue) {
			n, ok := value.(lua.LNumber)
			if !ok || n < 1 || n > gbChannels {
				fail("mute", fmt.Errorf("invalid channel %v", value))
				return
			}
			mute[int(n)-1] = true
		})
		cfg.Mute = mute
	case lua.LString:
		mute, err := ParseMuteList(string(v))
		if err != nil {
			fail("mute", err)
		} else {
			cfg.Mute = mute
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func luaNumber(L *lua.LState, name string) (float64, bool) {
	if n, ok := L.GetGlobal(name).(lua.LNumber); ok {
		return float64(n), true
	}
	return 0, false
}

func luaString(L *lua.LState, name string) (string, bool) {
	if s, ok := L.GetGlobal(name).(lua.LString); ok {
		return string(s), true
	}
	return "", false
}

func luaSeconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

// ParseMuteList parses a comma separated list of 1-based channel numbers
func ParseMuteList(s string) ([gbChannels]bool, error) {
	var mute [gbChannels]bool
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > gbChannels {
			return mute, fmt.Errorf("invalid channel %q (want 1-%d)", part, gbChannels)
		}
		mute[n-1] = true
	}
	return mute, nil
}
