package interview

import (
	"strings"

	"cvbot-backend/internal/shared/util"
)

// Category is a normalized job bucket used to pick question templates.
type Category string

const (
	CategorySoftware        Category = "software"
	CategoryMarketing       Category = "marketing"
	CategoryDesign          Category = "design"
	CategorySales           Category = "sales"
	CategoryPM              Category = "pm"
	CategoryHR              Category = "hr"
	CategoryData            Category = "data"
	CategoryFinance         Category = "finance"
	CategoryAdministrative  Category = "administrative"
	CategoryCustomerService Category = "customer_service"
	CategoryHospitality     Category = "hospitality"
	CategoryHealthcare      Category = "healthcare"
	CategoryEducation       Category = "education"
	CategoryBanking         Category = "banking"
	CategoryRetail          Category = "retail"
	CategoryTechLead        Category = "tech_lead"
	CategoryGeneral         Category = "general"
)

// Known reports whether c is one of the fixed categories rather than a
// pseudo-category built from free text.
func (c Category) Known() bool {
	_, ok := staticTechnical[c]
	return ok || c == CategoryGeneral
}

// Keywords are accent-free and lowercase. Longer keywords win, so
// "lider tecnico" beats "tecnico" and "data engineer" beats "engineer".
// On equal length the category listed first wins.
var categoryKeywords = []struct {
	cat      Category
	keywords []string
}{
	{CategorySoftware, []string{
		"software", "developer", "desarrollador", "programador", "programmer", "engineer",
		"ingeniero de software", "backend", "frontend", "fullstack", "full stack", "devops",
		"mobile", "android", "ios", "qa", "tester", "sre", "cloud",
	}},
	{CategoryMarketing, []string{"marketing", "mercadotecnia", "seo", "community manager", "growth", "publicidad", "contenido", "content"}},
	{CategoryDesign, []string{"designer", "disenador", "diseno", "ux", "ui", "grafico", "product designer"}},
	{CategorySales, []string{"ventas", "sales", "vendedor", "ejecutivo comercial", "comercial", "account executive", "business development"}},
	{CategoryPM, []string{
		"product manager", "project manager", "gerente de proyecto", "gerente de producto",
		"scrum master", "product owner", "pm",
	}},
	{CategoryHR, []string{"recursos humanos", "rrhh", "human resources", "reclutador", "recruiter", "talent", "talento"}},
	{CategoryData, []string{"data", "datos", "analista de datos", "data scientist", "cientifico de datos", "data engineer", "machine learning", "bi"}},
	{CategoryFinance, []string{"finanzas", "finance", "contador", "contable", "accountant", "auditor", "financiero", "tesoreria"}},
	{CategoryAdministrative, []string{"administrativo", "administrative", "asistente", "assistant", "secretaria", "recepcionista", "office"}},
	{CategoryCustomerService, []string{
		"atencion al cliente", "servicio al cliente", "customer service", "customer success",
		"call center", "soporte", "support",
	}},
	{CategoryHospitality, []string{"hotel", "hoteleria", "restaurante", "mesero", "chef", "cocinero", "turismo", "hospitality", "barista"}},
	{CategoryHealthcare, []string{"enfermero", "enfermera", "medico", "doctor", "nurse", "salud", "health", "farmaceutico", "odontologo"}},
	{CategoryEducation, []string{"profesor", "maestro", "docente", "teacher", "educacion", "tutor", "instructor"}},
	{CategoryBanking, []string{"banco", "bancario", "banking", "cajero bancario", "credito", "riesgo", "asesor financiero"}},
	{CategoryRetail, []string{"retail", "tienda", "cajero", "dependiente", "store", "merchandising", "almacen"}},
	{CategoryTechLead, []string{
		"tech lead", "lider tecnico", "engineering manager", "arquitecto de software",
		"software architect", "cto", "head of engineering", "staff engineer",
	}},
}

// rawCategoryMinLen is the length above which unmatched input is kept as
// its own pseudo-category.
const rawCategoryMinLen = 10

// NormalizeJobType maps free-text job titles onto a category using the
// longest matching keyword.
func NormalizeJobType(freeText string) Category {
	clean := util.FoldText(freeText)
	if clean == "" {
		return CategoryGeneral
	}
	padded := " " + clean + " "

	best, bestLen := CategoryGeneral, 0
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if len(kw) <= bestLen {
				continue
			}
			// Short keywords must match whole words ("ui" in "cuidador" does not count).
			if len(kw) <= 3 {
				if !strings.Contains(padded, " "+kw+" ") {
					continue
				}
			} else if !strings.Contains(clean, kw) {
				continue
			}
			best, bestLen = entry.cat, len(kw)
		}
	}
	if bestLen > 0 {
		return best
	}
	raw := strings.ToLower(strings.TrimSpace(freeText))
	if len([]rune(raw)) > rawCategoryMinLen {
		return Category(raw)
	}
	return CategoryGeneral
}
