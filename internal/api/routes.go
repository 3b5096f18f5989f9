package api

import "github.com/go-chi/chi/v5"

// Routes registers the queue and service endpoints on r.
func Routes(r chi.Router, queue *QueueHandler, services *ServiceHandler) {
	r.Route("/services", func(r chi.Router) {
		r.Post("/", services.RegisterService)

		r.Route("/{serviceID}", func(r chi.Router) {
			r.Get("/", services.GetService)
			r.Put("/", services.UpdateService)
			r.Get("/queue", queue.GetQueueStats)

			r.Post("/jobs", queue.SubmitJob)
			r.Get("/jobs/next", queue.RequestNextJob)
			r.Post("/jobs/{jobID}/status", queue.ReportStatus)
		})
	})
}
