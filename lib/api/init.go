package api

import (
	"net/http"

	"github.com/ether/collabpads-go/lib"
	"github.com/ether/collabpads-go/lib/api/stats"
	"github.com/ether/collabpads-go/lib/ws"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

// InitAPI registers the socket endpoint and the operational routes.
func InitAPI(store *lib.InitStore) {
	store.C.Get("/socket.io/*", func(c *fiber.Ctx) error {
		ip := c.IP()
		return adaptor.HTTPHandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ws.ServeWs(store.Hub, writer, request, ip, store.RetrievedSettings, store.Limiter, store.Logger)
		})(c)
	})

	stats.Init(store)
}
