package engineapi

import (
	"io"
	"net/http"
	"net/url"

	"github.com/form3tech-oss/pact-engine/internal/app/engine"
	"github.com/form3tech-oss/pact-engine/internal/app/httpresponse"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	ServerAddress url.URL `env:"SERVER_ADDRESS"` // Address to listen on
	Seed          int64   `env:"SEED"`           // Seed for deterministic generation, 0 means time-based
	MockServerURL string  `env:"MOCK_SERVER_URL"`
	TLSCAFile     string  `env:"TLS_CA_FILE"`
	TLSCertFile   string  `env:"TLS_CERT_FILE"`
	TLSKeyFile    string  `env:"TLS_KEY_FILE"`
}

type api struct {
	interactions *engine.InteractionStore
	config       *Config
}

func SetupRoutes(e *echo.Echo, config *Config) {
	a := &api{
		interactions: &engine.InteractionStore{},
		config:       config,
	}

	e.GET("/ready", a.readinessHandler)
	e.POST("/interactions", a.addInteractionHandler)
	e.GET("/interactions", a.listInteractionsHandler)
	e.DELETE("/interactions", a.clearInteractionsHandler)
	e.POST("/interactions/:description/match", a.matchHandler)
	e.POST("/interactions/:description/generate", a.generateHandler)
}

func (a *api) readinessHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (a *api) addInteractionHandler(c echo.Context) error {
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to read interaction definition. %s", err.Error()))
	}

	record, err := engine.LoadInteraction(data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.FromError("unable to load interaction definition", err))
	}

	log.Infof("storing interaction '%s'", record.Description)
	a.interactions.Store(record)
	return c.NoContent(http.StatusCreated)
}

func (a *api) listInteractionsHandler(c echo.Context) error {
	records := a.interactions.All()
	descriptions := make([]string, 0, len(records))
	for _, record := range records {
		descriptions = append(descriptions, record.Description)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"interactions": descriptions})
}

func (a *api) clearInteractionsHandler(c echo.Context) error {
	log.Info("clearing all interactions")
	a.interactions.Clear()
	return c.NoContent(http.StatusNoContent)
}

func (a *api) matchHandler(c echo.Context) error {
	record, part, target, apiErr := a.resolveSlot(c)
	if apiErr != nil {
		return c.JSON(http.StatusBadRequest, apiErr)
	}

	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to read actual value. %s", err.Error()))
	}

	actual, err := engine.ParseJSONValue(data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, httpresponse.FromError("unable to parse actual value", err))
	}

	result, err := record.Match(part, target, actual)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, httpresponse.FromError("unable to match", err))
	}
	return c.JSON(http.StatusOK, result)
}

func (a *api) generateHandler(c echo.Context) error {
	record, part, target, apiErr := a.resolveSlot(c)
	if apiErr != nil {
		return c.JSON(http.StatusBadRequest, apiErr)
	}

	ctx := &engine.GenerationContext{MockServerURL: a.config.MockServerURL}
	if a.config.Seed != 0 {
		ctx = engine.NewGenerationContext(a.config.Seed)
		ctx.MockServerURL = a.config.MockServerURL
	}
	if c.Request().ContentLength > 0 {
		states := map[string]interface{}{}
		if err := c.Bind(&states); err != nil {
			return c.JSON(http.StatusBadRequest, httpresponse.Errorf("unable to parse provider state values. %s", err.Error()))
		}
		ctx.ProviderState = states
	}

	value, err := record.Generate(part, target, ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, httpresponse.FromError("unable to generate", err))
	}

	raw, err := engine.MarshalValue(value)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, httpresponse.Errorf("unable to marshal generated value. %s", err.Error()))
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (a *api) resolveSlot(c echo.Context) (*engine.InteractionRecord, engine.Part, engine.Target, *httpresponse.APIError) {
	description := c.Param("description")
	if unescaped, err := url.PathUnescape(description); err == nil {
		description = unescaped
	}
	record, ok := a.interactions.Load(description)
	if !ok {
		return nil, "", "", httpresponse.Errorf("unable to find interaction. %s", description)
	}

	part := engine.Part(c.QueryParam("part"))
	if part == "" {
		part = engine.PartResponse
	}
	if part != engine.PartRequest && part != engine.PartResponse {
		return nil, "", "", httpresponse.Errorf("unknown interaction part '%s'", part)
	}

	target := engine.Target(c.QueryParam("target"))
	if target == "" {
		target = engine.TargetBody
	}
	if !target.Valid() {
		return nil, "", "", httpresponse.Errorf("unknown interaction target '%s'", target)
	}
	return record, part, target, nil
}
