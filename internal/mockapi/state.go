package mockapi

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"stratege/internal/types"
)

var (
	errNotFound   = errors.New("not found")
	errValidation = errors.New("validation")
)

func notFound(what string, id int64) error {
	return fmt.Errorf("%w: %s %d not found", errNotFound, what, id)
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", errValidation, msg)
}

type scenarioRec struct {
	summary   types.ScenarioSummary
	configIDs []int64
}

type configRec struct {
	cfg         types.Configuration
	objectifIDs []int64
	cibleIDs    []int64
	plans       []types.Plan
}

// store is the in-memory data set behind the handlers.
type store struct {
	mu  sync.Mutex
	now func() time.Time
	seq int64

	scenarios map[int64]*scenarioRec
	order     []int64
	configs   map[int64]*configRec

	objectifs []types.Objectif
	cibles    []types.Cible
}

func newStore(now func() time.Time) *store {
	return &store{
		now:       now,
		scenarios: make(map[int64]*scenarioRec),
		configs:   make(map[int64]*configRec),
	}
}

func (s *store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *store) ts() types.Timestamp { return types.NewTimestamp(s.now().UTC()) }

func (s *store) listScenarios() []types.ScenarioSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ScenarioSummary, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.scenarios[id].summary)
	}
	return out
}

func (s *store) createScenario(in types.ScenarioInput) (types.ScenarioSummary, error) {
	if err := in.Validate(); err != nil {
		return types.ScenarioSummary{}, invalid(err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createScenarioLocked(in), nil
}

func (s *store) createScenarioLocked(in types.ScenarioInput) types.ScenarioSummary {
	now := s.ts()
	sum := types.ScenarioSummary{
		ID:          s.nextID(),
		Nom:         in.Nom,
		Thematique:  in.Thematique,
		Description: in.Description,
		Statut:      types.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.scenarios[sum.ID] = &scenarioRec{summary: sum}
	s.order = append(s.order, sum.ID)
	return sum
}

func (s *store) scenarioDetail(id int64) (types.ScenarioDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.scenarios[id]
	if !ok {
		return types.ScenarioDetail{}, notFound("scenario", id)
	}
	detail := types.ScenarioDetail{ScenarioSummary: rec.summary, Configurations: []types.ConfigurationDetail{}}
	for _, cid := range rec.configIDs {
		detail.Configurations = append(detail.Configurations, s.configDetailLocked(s.configs[cid]))
	}
	return detail, nil
}

func (s *store) deleteScenario(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.scenarios[id]
	if !ok {
		return notFound("scenario", id)
	}
	for _, cid := range rec.configIDs {
		delete(s.configs, cid)
	}
	delete(s.scenarios, id)
	s.order = slices.DeleteFunc(s.order, func(v int64) bool { return v == id })
	return nil
}

func (s *store) listConfigurations(scenarioID int64) ([]types.Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.scenarios[scenarioID]
	if !ok {
		return nil, notFound("scenario", scenarioID)
	}
	out := make([]types.Configuration, 0, len(rec.configIDs))
	for _, cid := range rec.configIDs {
		out = append(out, s.configs[cid].cfg)
	}
	return out, nil
}

func (s *store) createConfiguration(scenarioID int64, nom string) (types.Configuration, error) {
	if nom == "" {
		return types.Configuration{}, invalid("nom est requis")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.scenarios[scenarioID]
	if !ok {
		return types.Configuration{}, invalid(fmt.Sprintf("Scenario %d not found", scenarioID))
	}
	now := s.ts()
	cfg := types.Configuration{ID: s.nextID(), ScenarioID: scenarioID, Nom: nom, CreatedAt: now, UpdatedAt: now}
	s.configs[cfg.ID] = &configRec{cfg: cfg}
	rec.configIDs = append(rec.configIDs, cfg.ID)
	return cfg, nil
}

func (s *store) configDetail(id int64) (types.ConfigurationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.configs[id]
	if !ok {
		return types.ConfigurationDetail{}, notFound("configuration", id)
	}
	return s.configDetailLocked(rec), nil
}

func (s *store) configDetailLocked(rec *configRec) types.ConfigurationDetail {
	d := types.ConfigurationDetail{
		Configuration: rec.cfg,
		Objectifs:     []types.Objectif{},
		Cibles:        []types.Cible{},
		Plans:         slices.Clone(rec.plans),
	}
	if d.Plans == nil {
		d.Plans = []types.Plan{}
	}
	for _, id := range rec.objectifIDs {
		if o, ok := s.objectifByID(id); ok {
			d.Objectifs = append(d.Objectifs, o)
		}
	}
	for _, id := range rec.cibleIDs {
		if c, ok := s.cibleByID(id); ok {
			d.Cibles = append(d.Cibles, c)
		}
	}
	return d
}

func (s *store) deleteConfiguration(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.configs[id]
	if !ok {
		return notFound("configuration", id)
	}
	if sc, ok := s.scenarios[rec.cfg.ScenarioID]; ok {
		sc.configIDs = slices.DeleteFunc(sc.configIDs, func(v int64) bool { return v == id })
	}
	delete(s.configs, id)
	return nil
}

func (s *store) objectifByID(id int64) (types.Objectif, bool) {
	for _, o := range s.objectifs {
		if o.ID == id {
			return o, true
		}
	}
	return types.Objectif{}, false
}

func (s *store) cibleByID(id int64) (types.Cible, bool) {
	for _, c := range s.cibles {
		if c.ID == id {
			return c, true
		}
	}
	return types.Cible{}, false
}

// findOrCreateObjectifLocked returns the catalog entry with the label,
// creating it when absent.
func (s *store) findOrCreateObjectifLocked(in types.Objectif) types.Objectif {
	for _, o := range s.objectifs {
		if o.Label == in.Label {
			return o
		}
	}
	o := types.Objectif{ID: s.nextID(), Label: in.Label, Description: in.Description}
	s.objectifs = append(s.objectifs, o)
	return o
}

func (s *store) findOrCreateCibleLocked(in types.Cible) types.Cible {
	for _, c := range s.cibles {
		if c.Label == in.Label {
			return c
		}
	}
	c := types.Cible{ID: s.nextID(), Label: in.Label, Persona: in.Persona, Segment: in.Segment, Maturite: in.Maturite}
	s.cibles = append(s.cibles, c)
	return c
}

func (s *store) createObjectif(in types.Objectif) (types.Objectif, error) {
	if in.Label == "" {
		return types.Objectif{}, invalid("label est requis")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOrCreateObjectifLocked(in), nil
}

func (s *store) createCible(in types.Cible) (types.Cible, error) {
	if in.Label == "" {
		return types.Cible{}, invalid("label est requis")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findOrCreateCibleLocked(in), nil
}

func (s *store) allObjectifs() []types.Objectif {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Objectif{}, s.objectifs...)
}

func (s *store) allCibles() []types.Cible {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Cible{}, s.cibles...)
}

func (s *store) linkObjectif(configID int64, in types.Objectif) (types.ConfigurationDetail, error) {
	if in.Label == "" {
		return types.ConfigurationDetail{}, invalid("label est requis")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.configs[configID]
	if !ok {
		return types.ConfigurationDetail{}, notFound("configuration", configID)
	}
	o := s.findOrCreateObjectifLocked(in)
	if !slices.Contains(rec.objectifIDs, o.ID) {
		if len(rec.objectifIDs) >= types.MaxObjectifs {
			return types.ConfigurationDetail{}, invalid(fmt.Sprintf("Maximum %d objectifs par configuration", types.MaxObjectifs))
		}
		rec.objectifIDs = append(rec.objectifIDs, o.ID)
		rec.cfg.UpdatedAt = s.ts()
	}
	return s.configDetailLocked(rec), nil
}

func (s *store) linkCible(configID int64, in types.Cible) (types.ConfigurationDetail, error) {
	if in.Label == "" {
		return types.ConfigurationDetail{}, invalid("label est requis")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.configs[configID]
	if !ok {
		return types.ConfigurationDetail{}, notFound("configuration", configID)
	}
	c := s.findOrCreateCibleLocked(in)
	if !slices.Contains(rec.cibleIDs, c.ID) {
		if len(rec.cibleIDs) >= types.MaxCibles {
			return types.ConfigurationDetail{}, invalid(fmt.Sprintf("Maximum %d cibles par configuration", types.MaxCibles))
		}
		rec.cibleIDs = append(rec.cibleIDs, c.ID)
		rec.cfg.UpdatedAt = s.ts()
	}
	return s.configDetailLocked(rec), nil
}

func (s *store) unlinkObjectif(configID, objectifID int64) (types.ConfigurationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.configs[configID]
	if !ok {
		return types.ConfigurationDetail{}, notFound("configuration", configID)
	}
	if _, ok := s.objectifByID(objectifID); !ok {
		return types.ConfigurationDetail{}, notFound("objectif", objectifID)
	}
	rec.objectifIDs = slices.DeleteFunc(rec.objectifIDs, func(v int64) bool { return v == objectifID })
	return s.configDetailLocked(rec), nil
}

func (s *store) unlinkCible(configID, cibleID int64) (types.ConfigurationDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.configs[configID]
	if !ok {
		return types.ConfigurationDetail{}, notFound("configuration", configID)
	}
	if _, ok := s.cibleByID(cibleID); !ok {
		return types.ConfigurationDetail{}, notFound("cible", cibleID)
	}
	rec.cibleIDs = slices.DeleteFunc(rec.cibleIDs, func(v int64) bool { return v == cibleID })
	return s.configDetailLocked(rec), nil
}

func (s *store) canCreatePlan(configID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.configs[configID]
	if !ok {
		return false, notFound("configuration", configID)
	}
	return len(rec.objectifIDs) >= 1 && len(rec.cibleIDs) >= 1, nil
}

// generatePlan builds a deterministic plan: one diffusion action per target
// and five articles crossing objectives with targets.
func (s *store) generatePlan(configID int64) (types.GeneratedPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.configs[configID]
	if !ok {
		return types.GeneratedPlan{}, notFound("configuration", configID)
	}
	if len(rec.objectifIDs) == 0 || len(rec.cibleIDs) == 0 {
		return types.GeneratedPlan{}, invalid("La configuration doit avoir au moins 1 objectif et 1 cible")
	}
	d := s.configDetailLocked(rec)

	plan := types.Plan{
		ID:          s.nextID(),
		Resume:      fmt.Sprintf("Plan de contenu pour %q : %d objectif(s), %d cible(s).", rec.cfg.Nom, len(d.Objectifs), len(d.Cibles)),
		GeneratedAt: s.ts(),
	}
	canaux := []string{"LinkedIn", "Newsletter", "Blog", "Webinar"}
	for i, c := range d.Cibles {
		plan.Items = append(plan.Items, types.PlanItem{
			ID:        s.nextID(),
			Format:    "Post",
			Message:   fmt.Sprintf("%s pour %s", d.Objectifs[i%len(d.Objectifs)].Label, c.Label),
			Canal:     canaux[i%len(canaux)],
			Frequence: "hebdomadaire",
			KPI:       "taux d'engagement",
		})
	}
	for i := 0; i < 5; i++ {
		o := d.Objectifs[i%len(d.Objectifs)]
		c := d.Cibles[i%len(d.Cibles)]
		plan.Articles = append(plan.Articles, types.Article{
			ID:     s.nextID(),
			Nom:    fmt.Sprintf("Article %d : %s", i+1, o.Label),
			Resume: fmt.Sprintf("Angle %s adressé à %s.", o.Label, c.Label),
		})
	}
	rec.plans = append(rec.plans, plan)

	if sc, ok := s.scenarios[rec.cfg.ScenarioID]; ok {
		sc.summary.Statut = types.StatusReady
		sc.summary.UpdatedAt = s.ts()
	}

	return types.GeneratedPlan{PlanID: plan.ID, Resume: plan.Resume, Articles: slices.Clone(plan.Articles)}, nil
}

// latestPlan returns the most recent plan across the scenario's configurations.
func (s *store) latestPlan(scenarioID int64) (*types.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scenarios[scenarioID]
	if !ok {
		return nil, notFound("scenario", scenarioID)
	}
	var latest *types.Plan
	for _, cid := range sc.configIDs {
		for i := range s.configs[cid].plans {
			p := s.configs[cid].plans[i]
			if latest == nil || !p.GeneratedAt.Before(latest.GeneratedAt.Time) {
				latest = &p
			}
		}
	}
	return latest, nil
}

func (s *store) scenarioSummary(id int64) (types.ScenarioSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.scenarios[id]
	if !ok {
		return types.ScenarioSummary{}, false
	}
	return rec.summary, true
}
