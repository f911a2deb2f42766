package usecase

import (
	"context"
	"log/slog"
	"time"

	"CommunityInsights/internal/domain"
	"CommunityInsights/internal/ports"
)

// GeneratorDeps wires the adapters used by the drafting workflow.
type GeneratorDeps struct {
	Store       ports.SheetStore
	Selector    ports.CandidateSelector
	Drafter     ports.Drafter
	Communities []string
	Logger      *slog.Logger
	Now         func() time.Time
}

// Generator drafts at most one new post per community from a stored New row.
type Generator struct {
	store       ports.SheetStore
	selector    ports.CandidateSelector
	drafter     ports.Drafter
	communities []string
	logger      *slog.Logger
	now         func() time.Time
}

// NewGenerator constructs the drafting workflow.
func NewGenerator(deps GeneratorDeps) *Generator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Generator{
		store:       deps.Store,
		selector:    deps.Selector,
		drafter:     deps.Drafter,
		communities: deps.Communities,
		logger:      logger,
		now:         now,
	}
}

// Run visits every community in order; failures stay local to a community.
func (g *Generator) Run(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{Kind: domain.WorkflowGenerate, StartedAt: g.now()}
	for _, community := range g.communities {
		report.Communities = append(report.Communities, g.generateFor(ctx, community))
	}
	report.FinishedAt = g.now()
	return report, nil
}

func (g *Generator) generateFor(ctx context.Context, community string) domain.CommunityReport {
	sheet := domain.SheetName(community)
	rep := domain.CommunityReport{Community: community, Sheet: sheet}
	log := g.logger.With("community", community, "sheet", sheet)

	rows := g.store.PostRows(ctx, sheet)

	var candidates []domain.Candidate
	byID := make(map[string]domain.PostRow)
	for _, row := range rows {
		if row.Status != domain.StatusNew {
			continue
		}
		candidates = append(candidates, row.Candidate())
		// The store updates the first row carrying an id, so draft from that one too.
		if _, ok := byID[row.ID]; !ok {
			byID[row.ID] = row
		}
	}
	rep.Candidates = len(candidates)
	if len(candidates) == 0 {
		log.Info("no unprocessed posts", "rows", len(rows))
		return rep
	}

	selected, err := g.selector.SelectOne(ctx, candidates)
	if err != nil {
		log.Warn("select candidate", "error", err)
		return rep
	}
	if selected == "" {
		log.Info("no candidate selected", "candidates", len(candidates))
		return rep
	}
	rep.SelectedID = selected

	source, ok := byID[selected]
	if !ok {
		log.Error("selected post missing from sheet", "id", selected)
		rep.Err = "selected post " + selected + " not found"
		return rep
	}

	draft, err := g.drafter.Draft(ctx, source)
	if err != nil {
		log.Error("draft post", "id", selected, "error", err)
		rep.Err = err.Error()
		return rep
	}
	if draft == "" {
		log.Warn("empty draft, source left unchanged", "id", selected)
		return rep
	}

	generated := domain.NewGeneratedPostRow(source, draft, g.now())
	target := domain.GeneratedSheetName(sheet)
	if _, err := g.store.AppendGenerated(ctx, target, []domain.GeneratedPostRow{generated}); err != nil {
		log.Error("append draft", "sheet", target, "id", selected, "error", err)
		rep.Err = err.Error()
		return rep
	}
	rep.Generated = true

	if !g.store.UpdateStatus(ctx, sheet, selected, domain.StatusProcessed) {
		log.Error("mark source processed", "id", selected)
		rep.Err = "status update failed for " + selected
		return rep
	}

	log.Info("draft generated", "id", selected, "target", target)
	return rep
}
