package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/boardsync/internal/api/v1"
	"github.com/gosuda/boardsync/internal/realtime"
)

func registerAPIRoutes(api huma.API, store v1.BoardStore) {
	v1.RegisterBoardRoutes(api, store)
}

func registerWSRoutes(r chi.Router, hub *realtime.Hub) {
	r.Get("/ws", hub.ServeWS)
}
