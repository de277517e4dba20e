// Package swagger serves the OpenAPI document and Swagger UI
package swagger

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

// RegisterRoutes mounts the Swagger UI at /api/doc and the raw document
// at /api/doc.json
func RegisterRoutes(router gin.IRouter) {
	router.GET("/api/doc", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/api/doc/index.html")
	})
	router.GET("/api/doc/*any", GetSwaggerUI())
	router.GET("/api/doc.json", GetOpenAPIJSON())
}

// GetSwaggerUI returns the Swagger UI handler
func GetSwaggerUI() gin.HandlerFunc {
	config := ginSwagger.Config{
		URL:                      "doc.json",
		InstanceName:             SwaggerInfo.InstanceName(),
		DocExpansion:             "list",
		DeepLinking:              true,
		PersistAuthorization:     true,
		DefaultModelsExpandDepth: 1,
	}
	return ginSwagger.CustomWrapHandler(&config, swaggerFiles.Handler)
}

// GetOpenAPIJSON returns the OpenAPI document registered by docs.go
func GetOpenAPIJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":  "OpenAPI document unavailable",
				"code":   "INTERNAL_ERROR",
				"status": http.StatusInternalServerError,
			})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}
