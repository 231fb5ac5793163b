package web

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/open-foundation-team/apple-music-remote/internal/logging"
	"github.com/open-foundation-team/apple-music-remote/internal/player"
	"github.com/open-foundation-team/apple-music-remote/internal/protocol"
	"github.com/open-foundation-team/apple-music-remote/internal/registry"
)

// Broadcaster receives fresh snapshots after mutating requests so push
// channel clients stay in sync with HTTP-driven changes.
type Broadcaster interface {
	Publish(snap player.Snapshot)
}

// API binds the request/response endpoints to the player controller,
// the activity registry and the server identity.
type API struct {
	controller player.Controller
	registry   *registry.Registry
	identity   protocol.ServerIdentity
	broadcast  Broadcaster
}

// NewAPI creates the endpoint set. The broadcaster may be nil when no
// push channel is running.
func NewAPI(controller player.Controller, reg *registry.Registry, identity protocol.ServerIdentity, broadcast Broadcaster) *API {
	return &API{
		controller: controller,
		registry:   reg,
		identity:   identity,
		broadcast:  broadcast,
	}
}

// Register installs every endpoint on the router.
func (a *API) Register(rt *Router) {
	rt.HandlePublic("GET", "/api/info", a.handleInfo)
	rt.HandlePublic("GET", "/api/ping", a.handlePing)

	rt.Handle("GET", "/api/state", a.handleState)
	rt.Handle("GET", "/api/health", a.handleHealth)

	for _, action := range []player.Action{
		player.ActionPlay,
		player.ActionPause,
		player.ActionToggle,
		player.ActionNext,
		player.ActionPrevious,
	} {
		rt.Handle("POST", "/api/"+string(action), a.transportHandler(action))
	}

	rt.Handle("GET", "/api/volume", a.volumeGetHandler(player.TargetMusic))
	rt.Handle("POST", "/api/volume", a.volumeSetHandler(player.TargetMusic))
	rt.Handle("GET", "/api/system-volume", a.volumeGetHandler(player.TargetSystem))
	rt.Handle("POST", "/api/system-volume", a.volumeSetHandler(player.TargetSystem))
}

func (a *API) handleInfo(req *Request) (*Response, error) {
	return NewResponse(StatusOK).JSON(a.identity), nil
}

func (a *API) handlePing(req *Request) (*Response, error) {
	return NewResponse(StatusOK).JSON(map[string]string{"status": "ok"}), nil
}

func (a *API) handleState(req *Request) (*Response, error) {
	snap, err := a.controller.CurrentSnapshot()
	if err != nil {
		return nil, err
	}
	return NewResponse(StatusOK).JSON(snap), nil
}

func (a *API) handleHealth(req *Request) (*Response, error) {
	return NewResponse(StatusOK).JSON(a.registry.Summary()), nil
}

// transportHandler runs one transport action and answers 204.
func (a *API) transportHandler(action player.Action) HandlerFunc {
	return func(req *Request) (*Response, error) {
		if err := player.Do(a.controller, action); err != nil {
			return nil, err
		}
		a.publishLatest()
		return NewResponse(StatusNoContent), nil
	}
}

// volumePayload is the body shape shared by both volume endpoints. The
// pointer distinguishes a missing field from an explicit zero.
type volumePayload struct {
	Volume *int `json:"volume"`
}

func (a *API) volumeGetHandler(target player.VolumeTarget) HandlerFunc {
	return func(req *Request) (*Response, error) {
		volume, err := player.TargetVolume(a.controller, target)
		if err != nil {
			return nil, err
		}
		return NewResponse(StatusOK).JSON(volumePayload{Volume: &volume}), nil
	}
}

func (a *API) volumeSetHandler(target player.VolumeTarget) HandlerFunc {
	return func(req *Request) (*Response, error) {
		var payload volumePayload
		if err := json.Unmarshal(req.Body, &payload); err != nil {
			return nil, BadRequestError("invalid volume payload: " + err.Error())
		}
		if payload.Volume == nil {
			return nil, BadRequestError("volume is required")
		}
		if err := player.SetTargetVolume(a.controller, target, *payload.Volume); err != nil {
			if errors.Is(err, player.ErrVolumeRange) {
				return nil, BadRequestError(err.Error())
			}
			return nil, err
		}
		a.publishLatest()
		return NewResponse(StatusNoContent), nil
	}
}

// publishLatest pushes the post-mutation snapshot to the push channel.
// The mutation already succeeded, so a failed fetch only costs the
// broadcast, not the response.
func (a *API) publishLatest() {
	if a.broadcast == nil {
		return
	}
	snap, err := a.controller.CurrentSnapshot()
	if err != nil {
		logging.Warn("Failed to fetch snapshot after mutation", zap.Error(err))
		return
	}
	a.broadcast.Publish(snap)
}
