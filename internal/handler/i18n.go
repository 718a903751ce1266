package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"pf-studio/internal/i18n"
)

// I18nHandler serves the translation tables.
type I18nHandler struct {
	catalog *i18n.Catalog
}

// NewI18nHandler creates an I18nHandler.
func NewI18nHandler(catalog *i18n.Catalog) *I18nHandler {
	return &I18nHandler{catalog: catalog}
}

type languageOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Languages picks a language from ?lang= and Accept-Language and lists the
// supported choices.
func (h *I18nHandler) Languages(c echo.Context) error {
	opts := make([]languageOption, 0, len(i18n.Supported))
	for _, code := range i18n.Supported {
		opts = append(opts, languageOption{Code: code, Label: i18n.Label(code)})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"language":  i18n.Match(c.QueryParam("lang"), c.Request().Header.Get("Accept-Language")),
		"supported": opts,
	})
}

// Table returns every string for one language.
func (h *I18nHandler) Table(c echo.Context) error {
	table, err := h.catalog.Table(c.Param("lang"))
	if errors.Is(err, i18n.ErrUnsupportedLanguage) {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error": "language not supported",
		})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, table)
}
