package server

import (
	"net/http"

	"github.com/Temutjin2k/trip-dispatch/internal/adapter/http/middleware"
	"github.com/Temutjin2k/trip-dispatch/internal/domain/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes - setups http routes
func setupRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	// System Health
	mux.HandleFunc("/health", routes.health.HealthCheck)

	setupMetricsRoute(mux)
	setupTripRoutes(mux, routes, m)
	setupDriverRoutes(mux, routes, m)
	setupDemandRoutes(mux, routes, m)
}

// setupTripRoutes setups the trip lifecycle and matching routes
func setupTripRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.Handle("POST /trips", m.RequireRoles(routes.trip.Create, types.RoleRider))               // Create a new trip request
	mux.Handle("GET /trips/nearby", m.RequireRoles(routes.trip.Nearby, types.RoleDriver))        // Pending trips near the calling driver
	mux.Handle("GET /trips/{trip_id}", m.RequireRoles(routes.trip.Get))                          // Get one trip
	mux.Handle("POST /trips/{trip_id}/accept", m.RequireRoles(routes.trip.Accept, types.RoleDriver))  // Driver claims a pending trip
	mux.Handle("POST /trips/{trip_id}/reject", m.RequireRoles(routes.trip.Reject, types.RoleDriver))  // Driver declines an offer
	mux.Handle("POST /trips/{trip_id}/status", m.RequireRoles(routes.trip.UpdateStatus, types.RoleDriver, types.RoleRider)) // Advance the lifecycle
	mux.Handle("GET /trips/{trip_id}/candidates", m.RequireRoles(routes.trip.Candidates, types.RoleRider, types.RoleCompanyAdmin)) // Ranked drivers for a trip
	mux.Handle("GET /trips/{trip_id}/settlement", m.RequireRoles(routes.trip.Settlement)) // Frozen fare record
}

// setupDriverRoutes setups the driver presence routes
func setupDriverRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.Handle("POST /drivers/{driver_id}/online", m.RequireRoles(routes.driver.GoOnline, types.RoleDriver))         // Driver goes online
	mux.Handle("POST /drivers/{driver_id}/offline", m.RequireRoles(routes.driver.GoOffline, types.RoleDriver))       // Driver goes offline
	mux.Handle("POST /drivers/{driver_id}/location", m.RequireRoles(routes.driver.UpdateLocation, types.RoleDriver)) // Update driver location
	mux.HandleFunc("GET /ws/drivers/{driver_id}", routes.driver.HandleWS)                                            // WebSocket connection for drivers
}

// setupDemandRoutes setups the demand heat-map route
func setupDemandRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware) {
	mux.Handle("GET /demand/zones", m.RequireRoles(routes.demand.Zones)) // Live demand grid around a point
}

// setupMetricsRoute configures the Prometheus metrics endpoint
func setupMetricsRoute(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}
