// Package http exposes the database health surface over gofiber/fiber.
//
// Routes registered by RegisterRoutes:
//
//	GET /ping        liveness text
//	GET /version     build version
//	GET /api/health  pool, breaker and connectivity document
package http
