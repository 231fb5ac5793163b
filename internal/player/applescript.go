package player

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Scripts for the Music app. The snapshot script returns one field per
// line; try blocks cover the stopped state, where player position and
// current track raise errors instead of returning values.
const (
	scriptPlay     = `tell application "Music" to play`
	scriptPause    = `tell application "Music" to pause`
	scriptToggle   = `tell application "Music" to playpause`
	scriptNext     = `tell application "Music" to next track`
	scriptPrevious = `tell application "Music" to previous track`

	scriptGetVolume = `tell application "Music" to get sound volume`
	scriptSetVolume = `tell application "Music" to set sound volume to %d`

	scriptGetSystemVolume = `output volume of (get volume settings)`
	scriptSetSystemVolume = `set volume output volume %d`

	scriptSnapshot = `tell application "Music"
	set st to (player state as text)
	set vol to sound volume
	set pos to 0
	set trackName to ""
	set trackArtist to ""
	set trackAlbum to ""
	set trackDuration to 0
	try
		set pos to player position
	end try
	try
		set t to current track
		set trackName to name of t
		set trackArtist to artist of t
		set trackAlbum to album of t
		set trackDuration to duration of t
	end try
	return st & linefeed & pos & linefeed & vol & linefeed & trackDuration & linefeed & trackName & linefeed & trackArtist & linefeed & trackAlbum
end tell`
)

// scriptTimeout bounds a single osascript invocation. The Music app can
// take a couple of seconds to answer right after launch.
const scriptTimeout = 10 * time.Second

// AppleScriptController drives the Music app and the system mixer through
// osascript. It satisfies Controller on macOS.
type AppleScriptController struct {
	timeout time.Duration
}

// NewAppleScriptController returns a controller backed by osascript, or an
// error when the binary is not on PATH (i.e. not macOS).
func NewAppleScriptController() (*AppleScriptController, error) {
	if _, err := exec.LookPath("osascript"); err != nil {
		return nil, fmt.Errorf("osascript not available: %w", err)
	}
	return &AppleScriptController{timeout: scriptTimeout}, nil
}

func (c *AppleScriptController) run(script string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("osascript: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("osascript: %w", err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

func (c *AppleScriptController) Play() error     { _, err := c.run(scriptPlay); return err }
func (c *AppleScriptController) Pause() error    { _, err := c.run(scriptPause); return err }
func (c *AppleScriptController) Toggle() error   { _, err := c.run(scriptToggle); return err }
func (c *AppleScriptController) Next() error     { _, err := c.run(scriptNext); return err }
func (c *AppleScriptController) Previous() error { _, err := c.run(scriptPrevious); return err }

func (c *AppleScriptController) Volume() (int, error) {
	out, err := c.run(scriptGetVolume)
	if err != nil {
		return 0, err
	}
	return parseVolume(out)
}

func (c *AppleScriptController) SetVolume(v int) error {
	_, err := c.run(fmt.Sprintf(scriptSetVolume, v))
	return err
}

func (c *AppleScriptController) SystemVolume() (int, error) {
	out, err := c.run(scriptGetSystemVolume)
	if err != nil {
		return 0, err
	}
	return parseVolume(out)
}

func (c *AppleScriptController) SetSystemVolume(v int) error {
	_, err := c.run(fmt.Sprintf(scriptSetSystemVolume, v))
	return err
}

func (c *AppleScriptController) CurrentSnapshot() (Snapshot, error) {
	out, err := c.run(scriptSnapshot)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := parseSnapshot(out)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.SystemVolume, err = c.SystemVolume(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// parseSnapshot decodes the line-per-field output of scriptSnapshot.
func parseSnapshot(out string) (Snapshot, error) {
	lines := strings.Split(out, "\n")
	if len(lines) < 7 {
		return Snapshot{}, fmt.Errorf("unexpected snapshot output: %d fields", len(lines))
	}

	snap := Snapshot{
		State:  strings.TrimSpace(lines[0]),
		Title:  lines[4],
		Artist: lines[5],
		Album:  lines[6],
	}

	var err error
	if snap.Position, err = parseSeconds(lines[1]); err != nil {
		return Snapshot{}, fmt.Errorf("bad player position %q: %w", lines[1], err)
	}
	if snap.Volume, err = parseVolume(lines[2]); err != nil {
		return Snapshot{}, fmt.Errorf("bad sound volume %q: %w", lines[2], err)
	}
	if snap.Duration, err = parseSeconds(lines[3]); err != nil {
		return Snapshot{}, fmt.Errorf("bad track duration %q: %w", lines[3], err)
	}
	return snap, nil
}

// parseSeconds accepts AppleScript's number formatting, which may use a
// decimal comma depending on locale.
func parseSeconds(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || s == "missing value" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseVolume(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad volume value %q: %w", s, err)
	}
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return v, nil
}
