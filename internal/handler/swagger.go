package handler

import (
	"github.com/gofiber/fiber/v3"
)

const swaggerPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Search Service - Swagger UI</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
    SwaggerUIBundle({ url: "/swagger/doc.yaml", dom_id: "#swagger-ui" });
    </script>
</body>
</html>`

// RegisterSwagger serves the OpenAPI document and a Swagger UI page for it.
func RegisterSwagger(app fiber.Router, yamlContent []byte) {
	app.Get("/swagger/doc.yaml", func(c fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(yamlContent)
	})

	app.Get("/swagger/*", func(c fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerPage)
	})
}
