package server

import (
	"net/http"

	"github.com/akolanti/docchat/internal/adapter/utils"
	"github.com/akolanti/docchat/internal/handlers"
	"github.com/akolanti/docchat/internal/middleware"
	"github.com/go-chi/chi/v5"
)

type Routes struct {
	Handler *handlers.Handler
	Chain   *middleware.Chain
	// MCP is mounted at /mcp when set.
	MCP http.Handler
}

func NewRouter(rt Routes) *chi.Mux {
	r := utils.NewRouter()
	h, chain := rt.Handler, rt.Chain

	r.Group(func(r chi.Router) {
		r.Use(chain.Handler)

		r.Get("/health", h.Health)

		r.Post("/sessions", h.CreateSession)
		r.Delete("/sessions", h.DeleteSession)

		r.Post("/documents", h.UploadDocument)
		r.Get("/documents", h.ListDocuments)
		r.Get("/documents/{id}", h.GetDocument)
		r.Delete("/documents/{id}", h.DeleteDocument)

		r.Get("/search", h.Search)

		r.Post("/chat", chain.RequireUser(h.Chat))
		r.Get("/conversations", chain.RequireUser(h.ListConversations))
		r.Get("/conversations/{id}/messages", chain.RequireUser(h.ConversationMessages))
		r.Delete("/conversations/{id}", chain.RequireUser(h.DeleteConversation))

		if rt.MCP != nil {
			r.Handle("/mcp", rt.MCP)
		}
	})
	return r
}
