package api

import (
	"bytes"
	"context"
	"time"

	"nutriplan/app/agent"
	"nutriplan/export"
	"nutriplan/logger"
	"nutriplan/nutrition"
	"nutriplan/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const defaultTopK = 5

type Searcher interface {
	Search(ctx context.Context, query string, topK int, threshold float64) ([]types.RetrievalResult, error)
}

type ContextAssembler interface {
	Assemble(ctx context.Context, p types.UserProfile) string
}

type PlanGenerator interface {
	Generate(ctx context.Context, req agent.PlanRequest) (types.PlanResult, error)
}

type PlanHandler struct {
	searcher  Searcher
	assembler ContextAssembler
	generator PlanGenerator
	sessions  *Sessions
	log       *logger.Logger
}

func NewPlanHandler(s Searcher, a ContextAssembler, g PlanGenerator, sessions *Sessions, log *logger.Logger) *PlanHandler {
	return &PlanHandler{
		searcher:  s,
		assembler: a,
		generator: g,
		sessions:  sessions,
		log:       logger.OrNop(log),
	}
}

type targetsResponse struct {
	Targets types.EnergyTargets `json:"targets"`
	Meals   []types.MealTarget  `json:"meals"`
}

// HandleTargets computes the energy targets and meal split for a profile.
func (h *PlanHandler) HandleTargets(c *fiber.Ctx) error {
	profile, err := types.DecodeUserProfile(bytes.NewReader(c.Body()))
	if err != nil {
		return err
	}
	targets, err := nutrition.Compute(profile)
	if err != nil {
		return err
	}
	return c.JSON(targetsResponse{Targets: targets, Meals: nutrition.DistributeMeals(targets, profile)})
}

func (h *PlanHandler) HandleSearch(c *fiber.Ctx) error {
	var params types.SearchParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}
	if params.TopK == 0 {
		params.TopK = defaultTopK
	}

	results, err := h.searcher.Search(c.UserContext(), params.Query, params.TopK, params.Threshold)
	if err != nil {
		return err
	}
	h.log.Info("[SEARCH] query served", "query", params.Query, "results", len(results))
	return c.JSON(types.SearchResponse{Query: params.Query, Results: results})
}

// HandlePlan runs the whole pipeline and keeps the result for download.
func (h *PlanHandler) HandlePlan(c *fiber.Ctx) error {
	start := time.Now()
	params, err := types.DecodePlanParams(c.Body())
	if err != nil {
		return err
	}
	profile := params.Profile

	targets, err := nutrition.Compute(profile)
	if err != nil {
		return err
	}
	meals := nutrition.DistributeMeals(targets, profile)
	planContext := h.assembler.Assemble(c.UserContext(), profile)
	if planContext == "" {
		h.log.Warn("[CONTEXT] no method context retrieved, generating without it")
	}

	plan, err := h.generator.Generate(c.UserContext(), agent.PlanRequest{
		Profile: profile,
		Targets: targets,
		Meals:   meals,
		Context: planContext,
		Days:    params.Days,
	})
	if err != nil {
		return err
	}
	h.sessions.Put(plan, profile)
	h.log.Info("[PLAN] plan ready", "id", plan.ID, "validated", plan.Validated, "took", time.Since(start))
	return c.JSON(plan)
}

func (h *PlanHandler) HandlePlanText(c *fiber.Ctx) error {
	plan, _, err := h.lookup(c)
	if err != nil {
		return err
	}
	c.Attachment(export.FileName(plan, "txt"))
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")
	return c.Send(export.Text(plan))
}

func (h *PlanHandler) HandlePlanPDF(c *fiber.Ctx) error {
	plan, profile, err := h.lookup(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.PDF(&buf, plan, profile); err != nil {
		return err
	}
	c.Attachment(export.FileName(plan, "pdf"))
	c.Set(fiber.HeaderContentType, "application/pdf")
	return c.Send(buf.Bytes())
}

func (h *PlanHandler) lookup(c *fiber.Ctx) (types.PlanResult, types.UserProfile, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return types.PlanResult{}, types.UserProfile{}, ErrInvalidID()
	}
	plan, profile, ok := h.sessions.Get(id)
	if !ok {
		return types.PlanResult{}, types.UserProfile{}, ErrNotFound(id, "plan")
	}
	return plan, profile, nil
}
