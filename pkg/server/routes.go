package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	pathControl   = "/ws/animate_control"
	pathSubtitles = "/ws/subtitles"
	pathDanmaku   = "/ws/danmaku"
)

// buildFiberApp assembles the HTTP app: static asset serving and the
// three fixed websocket paths (spec.md §6).
func (a *App) buildFiberApp() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	if a.opts.Dirs.Static != "" {
		app.Static("/static", a.opts.Dirs.Static)
	}

	app.Get(pathControl, requireUpgrade, websocket.New(a.handleControl))
	app.Get(pathSubtitles, requireUpgrade, websocket.New(a.serveOutboundOnly(pathSubtitles)))
	app.Get(pathDanmaku, requireUpgrade, websocket.New(a.serveOutboundOnly(pathDanmaku)))

	return app
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// serveOutboundOnly registers a connection on path for Hub broadcasts and
// holds it open (discarding any inbound frames, since subtitles and
// danmaku are server-to-client only) until it closes.
func (a *App) serveOutboundOnly(path string) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		a.hub.Connect(path, c)
		defer a.hub.Disconnect(path, c)

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}
}
