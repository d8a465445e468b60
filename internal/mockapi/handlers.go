package mockapi

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stratege/internal/types"
)

func (s *Server) routes() {
	api := s.engine.Group("/api")

	api.GET("/scenarios", s.listScenarios)
	api.POST("/scenarios", s.createScenario)
	api.POST("/scenarios/suggest-new", s.suggestScenarios)
	api.POST("/scenarios/batch-create", s.batchCreate)
	api.GET("/scenarios/:id", s.getScenario)
	api.DELETE("/scenarios/:id", s.deleteScenario)
	api.GET("/scenarios/:id/export/json", s.exportJSON)
	api.GET("/scenarios/:id/export/csv", s.exportCSV)
	api.GET("/scenarios/:id/configurations", s.listConfigurations)
	api.POST("/scenarios/:id/configurations", s.createConfiguration)

	api.GET("/configurations/:id", s.getConfiguration)
	api.DELETE("/configurations/:id", s.deleteConfiguration)
	api.POST("/configurations/:id/objectifs", s.linkObjectif)
	api.POST("/configurations/:id/cibles", s.linkCible)
	api.DELETE("/configurations/:id/objectifs/:itemID", s.unlinkObjectif)
	api.DELETE("/configurations/:id/cibles/:itemID", s.unlinkCible)
	api.POST("/configurations/:id/suggest-objectifs", s.suggestObjectifs)
	api.POST("/configurations/:id/suggest-cibles", s.suggestCibles)
	api.GET("/configurations/:id/can-create-plan", s.canCreatePlan)
	api.POST("/configurations/:id/generate-plan", s.generatePlan)

	api.GET("/objectifs", s.listObjectifs)
	api.POST("/objectifs", s.createObjectif)
	api.GET("/cibles", s.listCibles)
	api.POST("/cibles", s.createCible)

	api.POST("/chat", s.chat)

	s.engine.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
}

// writeError maps store errors to the backend's {error} body.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errValidation):
		status = http.StatusBadRequest
	}
	msg := err.Error()
	if u := errors.Unwrap(err); u != nil {
		msg = trimSentinel(err, u)
	}
	c.JSON(status, gin.H{"error": msg})
}

// trimSentinel drops the "sentinel: " prefix added by notFound/invalid.
func trimSentinel(err, sentinel error) string {
	prefix := sentinel.Error() + ": "
	msg := err.Error()
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s", name)})
		return 0, false
	}
	return id, true
}

func bind(c *gin.Context, out any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return false
	}
	return true
}

func (s *Server) listScenarios(c *gin.Context) {
	c.JSON(http.StatusOK, s.data.listScenarios())
}

func (s *Server) createScenario(c *gin.Context) {
	var in types.ScenarioInput
	if !bind(c, &in) {
		return
	}
	sum, err := s.data.createScenario(in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sum)
}

func (s *Server) getScenario(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	d, err := s.data.scenarioDetail(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) deleteScenario(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.data.deleteScenario(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Scenario deleted"})
}

var scenarioIdeas = []types.ScenarioSuggestion{
	{Nom: "Lancement produit", Thematique: "B2B SaaS", Description: "Faire connaître une nouvelle offre auprès des DSI."},
	{Nom: "Salon professionnel", Thematique: "Événementiel", Description: "Générer des rendez-vous qualifiés avant un salon."},
	{Nom: "Fidélisation clients", Thematique: "E-commerce", Description: "Réactiver les clients inactifs depuis six mois."},
	{Nom: "Marque employeur", Thematique: "RH", Description: "Attirer des profils techniques seniors."},
}

func (s *Server) suggestScenarios(c *gin.Context) {
	n := s.bumpSuggest("scenarios")
	c.JSON(http.StatusOK, gin.H{"suggestions": rotate(scenarioIdeas, n, 3)})
}

func (s *Server) batchCreate(c *gin.Context) {
	var in struct {
		Scenarios []types.ScenarioSuggestion `json:"scenarios"`
	}
	if !bind(c, &in) {
		return
	}
	created := make([]types.ScenarioSummary, 0, len(in.Scenarios))
	for _, sug := range in.Scenarios {
		sum, err := s.data.createScenario(types.ScenarioInput{Nom: sug.Nom, Thematique: sug.Thematique, Description: sug.Description})
		if err != nil {
			continue
		}
		created = append(created, sum)
	}
	c.JSON(http.StatusCreated, types.BatchCreateResult{Count: len(created), Scenarios: created})
}

func (s *Server) exportJSON(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	d, err := s.data.scenarioDetail(id)
	if err != nil {
		writeError(c, err)
		return
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=scenario_%d.json", id))
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) exportCSV(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	sum, found := s.data.scenarioSummary(id)
	if !found {
		writeError(c, notFound("scenario", id))
		return
	}
	plan, err := s.data.latestPlan(id)
	if err != nil {
		writeError(c, err)
		return
	}
	if plan == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Aucun plan généré pour ce scénario"})
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Plan marketing - " + sum.Nom})
	_ = w.Write([]string{"Généré le: " + plan.GeneratedAt.Format("2006-01-02 15:04")})
	_ = w.Write([]string{})
	_ = w.Write([]string{"Format", "Message", "Canal", "Fréquence", "KPI"})
	for _, it := range plan.Items {
		_ = w.Write([]string{it.Format, it.Message, it.Canal, it.Frequence, it.KPI})
	}
	w.Flush()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=plan_%d.csv", id))
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

func (s *Server) listConfigurations(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	list, err := s.data.listConfigurations(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createConfiguration(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in struct {
		Nom string `json:"nom"`
	}
	if !bind(c, &in) {
		return
	}
	cfg, err := s.data.createConfiguration(id, in.Nom)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

func (s *Server) getConfiguration(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	d, err := s.data.configDetail(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) deleteConfiguration(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := s.data.deleteConfiguration(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Configuration deleted"})
}

func (s *Server) linkObjectif(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in types.Objectif
	if !bind(c, &in) {
		return
	}
	d, err := s.data.linkObjectif(id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) linkCible(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in types.Cible
	if !bind(c, &in) {
		return
	}
	d, err := s.data.linkCible(id, in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) unlinkObjectif(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemID")
	if !ok {
		return
	}
	d, err := s.data.unlinkObjectif(id, itemID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) unlinkCible(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemID")
	if !ok {
		return
	}
	d, err := s.data.unlinkCible(id, itemID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

var objectifIdeas = []types.Objectif{
	{Label: "Augmenter notoriété", Description: "Faire connaître la marque auprès de la cible."},
	{Label: "Générer des leads", Description: "Collecter des contacts qualifiés."},
	{Label: "Fidéliser les clients", Description: "Augmenter le réachat."},
	{Label: "Lancer un produit", Description: "Réussir la mise sur le marché."},
}

var cibleIdeas = []types.Cible{
	{Label: "DSI", Persona: "Décideur IT en ETI", Segment: "B2B", Maturite: types.MaturityConsideration},
	{Label: "Directeur marketing", Persona: "Pilote la stratégie de marque", Segment: "B2B", Maturite: types.MaturityAwareness},
	{Label: "Responsable achats", Persona: "Compare les offres", Segment: "B2B", Maturite: types.MaturityDecision},
	{Label: "Fondateur de startup", Persona: "Cherche des outils rapides", Segment: "Startups", Maturite: types.MaturityAwareness},
	{Label: "Consultant indépendant", Persona: "Prescripteur", Segment: "Freelance", Maturite: types.MaturityConsideration},
}

func (s *Server) suggestObjectifs(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := s.data.configDetail(id); err != nil {
		writeError(c, err)
		return
	}
	n := s.bumpSuggest("objectifs")
	c.JSON(http.StatusOK, gin.H{"objectifs": rotate(objectifIdeas, n, 3)})
}

func (s *Server) suggestCibles(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if _, err := s.data.configDetail(id); err != nil {
		writeError(c, err)
		return
	}
	n := s.bumpSuggest("cibles")
	c.JSON(http.StatusOK, gin.H{"cibles": rotate(cibleIdeas, n, 4)})
}

func (s *Server) canCreatePlan(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	can, err := s.data.canCreatePlan(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"can_create_plan": can})
}

func (s *Server) generatePlan(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	plan, err := s.data.generatePlan(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (s *Server) listObjectifs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"objectifs": s.data.allObjectifs()})
}

func (s *Server) createObjectif(c *gin.Context) {
	var in types.Objectif
	if !bind(c, &in) {
		return
	}
	o, err := s.data.createObjectif(in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (s *Server) listCibles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cibles": s.data.allCibles()})
}

func (s *Server) createCible(c *gin.Context) {
	var in types.Cible
	if !bind(c, &in) {
		return
	}
	t, err := s.data.createCible(in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// chat answers with a canned reply. When a scenario is given, its detail is
// echoed back with the quick actions the real assistant proposes.
func (s *Server) chat(c *gin.Context) {
	var in types.ChatRequest
	if !bind(c, &in) {
		return
	}
	if in.Message == "" && in.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message est requis"})
		return
	}

	resp := types.ChatResponse{Actions: []types.ChatAction{}}
	if in.ScenarioID == 0 {
		resp.Message = "Glissez un scénario dans la zone de travail ou décrivez votre projet pour en créer un."
		resp.Actions = append(resp.Actions, types.ChatAction{Label: "Suggérer des scénarios", Action: "suggest_scenarios"})
		c.JSON(http.StatusOK, resp)
		return
	}

	d, err := s.data.scenarioDetail(in.ScenarioID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "Scénario introuvable.", "actions": []types.ChatAction{}, "error": "Scenario not found"})
		return
	}
	switch in.Action {
	case "":
		resp.Message = fmt.Sprintf("Bien noté pour « %s ». Voulez-vous définir les objectifs ?", d.Nom)
	default:
		resp.Message = fmt.Sprintf("Action « %s » prise en compte pour « %s ».", in.Action, d.Nom)
	}
	resp.Actions = append(resp.Actions,
		types.ChatAction{Label: "Définir les objectifs", Action: "define_objectifs"},
		types.ChatAction{Label: "Générer le plan", Action: "generate_plan"},
	)
	resp.Scenario = &d
	c.JSON(http.StatusOK, resp)
}

func (s *Server) bumpSuggest(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.suggests[kind]
	s.suggests[kind] = n + 1
	return n
}

// rotate returns size items of pool starting at offset n, wrapping around.
// Successive calls thus return different candidate lists.
func rotate[T any](pool []T, n, size int) []T {
	if size > len(pool) {
		size = len(pool)
	}
	out := make([]T, 0, size)
	for i := 0; i < size; i++ {
		out = append(out, pool[(n+i)%len(pool)])
	}
	return out
}

func (s *Server) seed() {
	s.data.mu.Lock()
	defer s.data.mu.Unlock()
	for _, idea := range scenarioIdeas[:2] {
		s.data.createScenarioLocked(types.ScenarioInput{Nom: idea.Nom, Thematique: idea.Thematique, Description: idea.Description})
	}
	for _, o := range objectifIdeas[:2] {
		s.data.findOrCreateObjectifLocked(o)
	}
	for _, t := range cibleIdeas[:2] {
		s.data.findOrCreateCibleLocked(t)
	}
}
