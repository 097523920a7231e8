package api

import (
	"nutriplan/config"

	"github.com/gofiber/fiber/v2"
)

// Settings is the non-secret part of the configuration exposed to clients.
type Settings struct {
	Collection      string  `json:"collection"`
	VectorBackend   string  `json:"vector_backend"`
	EmbeddingModel  string  `json:"embedding_model"`
	LLMModel        string  `json:"llm_model"`
	MaxAttempts     int     `json:"max_attempts"`
	BaseTemperature float64 `json:"base_temperature"`
	TemperatureStep float64 `json:"temperature_step"`
	PlanDays        int     `json:"plan_days"`
}

func SettingsFrom(cfg config.Config) Settings {
	return Settings{
		Collection:      cfg.Collection,
		VectorBackend:   cfg.VectorBackend,
		EmbeddingModel:  cfg.EmbeddingModel,
		LLMModel:        cfg.LLMModel,
		MaxAttempts:     cfg.MaxAttempts,
		BaseTemperature: cfg.BaseTemperature,
		TemperatureStep: cfg.TemperatureStep,
		PlanDays:        cfg.PlanDays,
	}
}

type ConfigHandler struct {
	settings Settings
}

func NewConfigHandler(s Settings) *ConfigHandler {
	return &ConfigHandler{settings: s}
}

func (h *ConfigHandler) HandleGetConfig(c *fiber.Ctx) error {
	return c.JSON(h.settings)
}
