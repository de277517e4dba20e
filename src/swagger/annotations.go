package swagger

// General API information for swag. Regenerate docs.go with:
// swag init -g src/swagger/annotations.go --output src/swagger --outputTypes go

// @title EcoGarden API
// @version 1.0
// @description Monthly gardening advice and local weather for registered gardeners.

// @license.name MIT

// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the token from POST /api/auth.

// @tag.name auth
// @tag.description Token issuance

// @tag.name user
// @tag.description Account management

// @tag.name conseil
// @tag.description Gardening advice by month

// @tag.name meteo
// @tag.description Normalized current weather

// @tag.name health
// @tag.description Service health
