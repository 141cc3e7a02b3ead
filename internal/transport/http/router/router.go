package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/vedran77/taskflow/internal/config"
	"github.com/vedran77/taskflow/internal/service"
	"github.com/vedran77/taskflow/internal/transport/http/handlers"
	"github.com/vedran77/taskflow/internal/transport/http/middleware"
	"github.com/vedran77/taskflow/internal/transport/ws"
)

func New(services *service.Services, hub *ws.Hub, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	authHandler := handlers.NewAuthHandler(services.Auth)
	projectHandler := handlers.NewProjectHandler(services.Projects)
	taskHandler := handlers.NewTaskHandler(services.Tasks)
	channelHandler := handlers.NewChannelHandler(services.Channels)
	dmHandler := handlers.NewDMHandler(services.Channels)
	messageHandler := handlers.NewMessageHandler(services.Messages)
	invitationHandler := handlers.NewInvitationHandler(services.Invitations)
	notificationHandler := handlers.NewNotificationHandler(services.Notifications)
	wsHandler := ws.NewHandler(hub, services.Tokens, services.Auth, services.Channels, cfg.AllowedOrigins)

	auth := middleware.Auth(services.Tokens)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
			})
		})

		// The socket authenticates itself from the query string.
		r.Get("/ws", wsHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Route("/projects", func(r chi.Router) {
				r.Post("/", projectHandler.Create)
				r.Get("/", projectHandler.List)
				r.Get("/{id}", projectHandler.Get)
				r.Patch("/{id}", projectHandler.Update)
				r.Delete("/{id}", projectHandler.Delete)

				r.Get("/{id}/members", projectHandler.ListMembers)
				r.Patch("/{id}/members/{uid}", projectHandler.UpdateMemberRole)
				r.Delete("/{id}/members/{uid}", projectHandler.RemoveMember)

				r.Post("/{id}/tasks", taskHandler.Create)
				r.Get("/{id}/tasks", taskHandler.ListByProject)

				r.Post("/{id}/channels", channelHandler.Create)
				r.Get("/{id}/channels", channelHandler.ListByProject)

				r.Post("/{id}/invitations", invitationHandler.Send)
				r.Get("/{id}/invitations", invitationHandler.ListForProject)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/{id}", taskHandler.Get)
				r.Patch("/{id}", taskHandler.Update)
				r.Delete("/{id}", taskHandler.Delete)
				r.Post("/{id}/assignments", taskHandler.Assign)
				r.Delete("/{id}/assignments/{uid}", taskHandler.Unassign)
			})

			r.Get("/me/tasks", taskHandler.ListMine)

			r.Post("/channels", channelHandler.Create)
			r.Route("/channels/{id}", func(r chi.Router) {
				r.Get("/", channelHandler.Get)
				r.Get("/members", channelHandler.ListMembers)
				r.Post("/members", channelHandler.AddMember)
				r.Delete("/members/{uid}", channelHandler.RemoveMember)
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
			})

			r.Get("/dm", dmHandler.List)
			r.Post("/dm/{uid}", dmHandler.Open)

			r.Patch("/messages/{id}", messageHandler.Edit)
			r.Delete("/messages/{id}", messageHandler.Delete)

			r.Get("/invitations", invitationHandler.ListMine)
			r.Post("/invitations/{id}/accept", invitationHandler.Accept)
			r.Post("/invitations/{id}/decline", invitationHandler.Decline)

			r.Get("/notifications", notificationHandler.List)
			r.Post("/notifications/read-all", notificationHandler.MarkAllRead)
			r.Post("/notifications/{id}/read", notificationHandler.MarkRead)
		})
	})

	return r
}
