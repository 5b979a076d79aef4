package dashboard

import "github.com/navis-app/navis-api/internal/model"

// Plan is a subscription tier. RouteLimit 0 means unlimited saved routes.
type Plan struct {
	ID         model.PlanID `json:"id"`
	Name       string       `json:"name"`
	Subtitle   string       `json:"subtitle"`
	Price      string       `json:"price"`
	RouteLimit int          `json:"routeLimit"`
	Features   []string     `json:"features"`
	Action     string       `json:"action"`
}

var plans = []Plan{
	{
		ID:         model.PlanStart,
		Name:       "Start",
		Subtitle:   "O começo da sua direção.",
		Price:      "Gratuito",
		RouteLimit: 3,
		Features: []string{
			"Acesso ao mapa e rotas",
			"Visualização em tempo real de trajetos e pontos de interesse",
			"Limite de 3 rotas salvas",
			"Anúncio (tipo banner)",
			"Comunidade Navis (acesso básico)",
		},
		Action: "Continuar com o Start",
	},
	{
		ID:       model.PlanHorizon,
		Name:     "Horizon",
		Subtitle: "O futuro da sua rota.",
		Price:    "R$ 24,90",
		Features: []string{
			"Recursos do plano Start",
			"Painel analítico com relatórios semanais e aprendizado do Navy",
			"Rotas ilimitadas salvas",
			"Sem anúncios",
			"Comunidade Navis (acesso completo)",
		},
		Action: "Assinar Plano Horizon",
	},
	{
		ID:       model.PlanAtlas,
		Name:     "Atlas",
		Subtitle: "Mais dados, rumo certo.",
		Price:    "À combinar",
		Features: []string{
			"Recursos do plano Horizon",
			"Personalização White Label da identidade da empresa",
			"Criação e gestão de rotas turísticas e pontos de interesse customizados",
			"Monitoramento de frota e comunicação direta com clientes (notificações, chat)",
		},
		Action: "Assinar Plano Atlas",
	},
}

// Plans returns the plan catalog in display order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// PlanByID looks up a plan. Unknown ids report false.
func PlanByID(id model.PlanID) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}
