package player

import "sync"

// NopController is an in-memory Controller for running the server on
// machines without the Music app. Transport actions flip a play/pause
// flag and volume writes stick, so clients still see coherent state.
type NopController struct {
	mu      sync.Mutex
	playing bool
	volume  int
	system  int
}

// NewNopController returns a NopController with both volumes at 50.
func NewNopController() *NopController {
	return &NopController{volume: 50, system: 50}
}

func (c *NopController) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = true
	return nil
}

func (c *NopController) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
	return nil
}

func (c *NopController) Toggle() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = !c.playing
	return nil
}

func (c *NopController) Next() error     { return nil }
func (c *NopController) Previous() error { return nil }

func (c *NopController) Volume() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume, nil
}

func (c *NopController) SetVolume(v int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = v
	return nil
}

func (c *NopController) SystemVolume() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.system, nil
}

func (c *NopController) SetSystemVolume(v int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.system = v
	return nil
}

func (c *NopController) CurrentSnapshot() (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := "paused"
	if c.playing {
		state = "playing"
	}
	return Snapshot{State: state, Volume: c.volume, SystemVolume: c.system}, nil
}
