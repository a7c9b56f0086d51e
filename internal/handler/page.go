package handler

import (
	"embed"
	"html/template"
	"log"
	"net/http"

	"github.com/falconsupport/api/internal/middleware"
	"github.com/falconsupport/api/internal/render"
	"github.com/gin-gonic/gin"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// Page is one routed view. Access is decided by the route group it is
// mounted on, not by the page itself.
type Page struct {
	Name  string
	Path  string
	Title string
}

var (
	PublicPages = []Page{
		{Name: "home", Path: "/", Title: "FalconSupport"},
		{Name: "auth", Path: "/auth", Title: "Sign in"},
		{Name: "forgot-password", Path: "/forgot-password", Title: "Reset your password"},
	}
	SessionPages = []Page{
		{Name: "requests", Path: "/requests", Title: "Feature requests"},
		{Name: "support-bug-report", Path: "/support-bug-report", Title: "Report a bug"},
		{Name: "user-guides", Path: "/user-guides", Title: "User guides"},
		{Name: "in-progress", Path: "/in-progress", Title: "In progress"},
	}
	AdminPages = []Page{
		{Name: "dashboard", Path: "/dashboard", Title: "Dashboard"},
		{Name: "guides", Path: "/guides", Title: "Manage guides"},
		{Name: "admins", Path: "/admins", Title: "Admins"},
	}
)

type pageData struct {
	Name    string
	Title   string
	Signed  bool
	Email   string
	Admin   bool
	APIBase string
}

// Render returns a handler for the page. Public pages may still see a
// principal when OptionalAuthMiddleware ran first.
func (p Page) Render() gin.HandlerFunc {
	return func(c *gin.Context) {
		data := pageData{Name: p.Name, Title: p.Title, APIBase: "/api"}
		if principal, ok := middleware.CurrentPrincipal(c); ok {
			data.Signed = true
			data.Email = principal.Email
			data.Admin = principal.Admin
		}

		middleware.RecordPageView(p.Name)
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := pageTemplate.Execute(c.Writer, data); err != nil {
			log.Printf("failed to render page %s: %v", p.Name, err)
		}
	}
}

// CodeStylesheet serves the CSS for highlighted code blocks in guides.
func CodeStylesheet(c *gin.Context) {
	c.Header("Content-Type", "text/css; charset=utf-8")
	c.Header("Cache-Control", "public, max-age=86400")
	c.Status(http.StatusOK)
	if err := render.WriteStylesheet(c.Writer); err != nil {
		log.Printf("failed to write code stylesheet: %v", err)
	}
}
