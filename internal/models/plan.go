package models

import "sort"

type PlanID string

const (
	PlanBronce PlanID = "bronce"
	PlanPlata  PlanID = "plata"
	PlanOro    PlanID = "oro"
)

type Plan struct {
	ID            PlanID   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	AmountInCents int64    `json:"amount_in_cents"`
	Featured      bool     `json:"featured"`
	Features      []string `json:"features"`
}

var plans = map[PlanID]Plan{
	PlanBronce: {
		ID:            PlanBronce,
		Name:          "Bronce",
		Description:   "Ideal para comenzar tu formación en turismo",
		AmountInCents: 150000 * 100,
		Features: []string{
			"Acceso a 10 cursos básicos",
			"Certificado de finalización",
			"Soporte por email",
			"Materiales descargables",
			"Acceso por 6 meses",
		},
	},
	PlanPlata: {
		ID:            PlanPlata,
		Name:          "Plata",
		Description:   "Para profesionales que buscan especialización",
		AmountInCents: 250000 * 100,
		Featured:      true,
		Features: []string{
			"Acceso a 20 cursos intermedios",
			"Certificado profesional",
			"Soporte por chat y email",
			"Sesiones de mentoring grupal",
			"Acceso por 12 meses",
			"Webinars exclusivos",
		},
	},
	PlanOro: {
		ID:            PlanOro,
		Name:          "Oro",
		Description:   "La experiencia completa para líderes del turismo",
		AmountInCents: 400000 * 100,
		Features: []string{
			"Acceso completo a todos los cursos",
			"Certificado de especialización",
			"Soporte premium 24/7",
			"Mentoring personalizado 1:1",
			"Acceso de por vida",
			"Networking con expertos",
			"Bolsa de trabajo exclusiva",
			"Actualizaciones gratuitas",
		},
	},
}

func LookupPlan(id PlanID) (Plan, bool) {
	p, ok := plans[id]
	return p, ok
}

// Plans returns the catalogue ordered by price.
func Plans() []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AmountInCents < out[j].AmountInCents })
	return out
}
