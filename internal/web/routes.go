package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// requestTimeout bounds ordinary API requests.
const requestTimeout = 2 * time.Minute

func (s *Server) setupRoutes() {
	store := s.deps.Store

	healthHandler := handlers.NewHealthHandler(s.deps.Face)
	studentsHandler := handlers.NewStudentsHandler(store, s.config.Storage.StudentImageDir)
	classesHandler := handlers.NewClassesHandler(store, store, store)
	boutsHandler := handlers.NewBoutsHandler(store, s.deps.Manager)
	streamHandler := handlers.NewStreamHandler(s.deps.Manager)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.SecurityHeaders())

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Get("/health", healthHandler.Get)

			// Students
			r.Post("/students", studentsHandler.Create)
			r.Get("/students", studentsHandler.List)
			r.Get("/students/{id}/image", studentsHandler.Image)
			r.Delete("/students/{id}", studentsHandler.Delete)

			// Classes
			r.Post("/classes", classesHandler.Create)
			r.Get("/classes", classesHandler.List)
			r.Get("/classes/{id}", classesHandler.Get)
			r.Get("/classes/{id}/students", classesHandler.Students)
			r.Post("/classes/{id}/bouts", classesHandler.CreateBout)
			r.Get("/classes/{id}/bouts", classesHandler.ListBouts)

			// Enrollments
			r.Post("/enrollments", classesHandler.Enroll)

			// Bouts
			r.Get("/bouts/{id}", boutsHandler.Get)
			r.Patch("/bouts/{id}/end", boutsHandler.End)
			r.Get("/bouts/{id}/attendance", boutsHandler.Attendance)
		})

		// Long-running: batch processing and event streams
		r.Post("/bouts/{id}/process-video", boutsHandler.ProcessVideo)
		r.Get("/bouts/{id}/events", boutsHandler.Events)
	})

	// Live attendance stream
	s.router.Get("/ws/attendance/{boutId}", streamHandler.Attendance)
}
