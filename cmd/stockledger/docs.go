package main

// @title Stock Ledger Service API
// @version 1.0
// @description Stock ledger and reservation engine API with full observability (logging, tracing, metrics)
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@commercefull.dev

// @license.name MIT

// @host localhost:8084
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @tag.name Reservations
// @tag.description Reservation lifecycle endpoints

// @tag.name Transfers
// @tag.description Inter-location transfer endpoints

// @tag.name Adjustments
// @tag.description Manual stock adjustment endpoints

// @tag.name Stock
// @tag.description Stock availability and ledger history endpoints

// @tag.name LowStock
// @tag.description Low stock signal endpoints

// @tag.name Health
// @tag.description Health check endpoints

// @tag.name Swagger
// @tag.description Swagger documentation endpoints
