package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Epin-platforms/nadal-server/docs"
	"github.com/Epin-platforms/nadal-server/handlers"
	"github.com/Epin-platforms/nadal-server/middleware"
)

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func SetupRoutes(
	router *chi.Mux,
	opts Options,
	gameHandler *handlers.GameHandler,
	notificationHandler *handlers.NotificationHandler,
	uploadHandler *handlers.UploadHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(opts.JWTSecret)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(docs.SwaggerJSON)
	})
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	// Websocket держит соединение дольше любого таймаута запроса, поэтому живёт вне /api.
	router.Route("/ws", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/tournaments/{id}", webSocketHandler.ServeTournament)
		r.Get("/rooms/{id}", webSocketHandler.ServeRoom)
	})

	router.Route("/api", func(r chi.Router) {
		r.Use(authenticate)
		if opts.RequestTimeout > 0 {
			r.Use(chiMiddleware.Timeout(opts.RequestTimeout))
		}

		r.Route("/tournaments/{id}", func(r chi.Router) {
			r.Post("/start", gameHandler.StartHandler)
			r.Post("/table", gameHandler.BuildTableHandler)
			r.Post("/rounds/{round}/advance", gameHandler.AdvanceRoundHandler)
			r.Post("/finalize", gameHandler.FinalizeHandler)

			r.Get("/tables", gameHandler.ListTablesHandler)
			r.Put("/tables/{tableID}/score", gameHandler.UpdateScoreHandler)
			r.Put("/tables/{tableID}/court", gameHandler.UpdateCourtHandler)
			r.Put("/participants/{uid}/seed", gameHandler.UpdateSeedHandler)
			r.Put("/state", gameHandler.UpdateStateHandler)

			r.Get("/bracket", gameHandler.GetBracketHandler)
			r.Get("/levels", gameHandler.ListLevelsHandler)
		})

		r.Get("/notifications", notificationHandler.ListHandler)
		r.Put("/users/me/fcm-token", notificationHandler.UpdateFCMTokenHandler)
		r.Get("/users/{uid}/games", gameHandler.ListUserGamesHandler)

		r.Post("/upload/image", uploadHandler.UploadImageHandler)
	})
}
