package interview

import "strings"

// Stage is the interview stage a question index maps to.
type Stage int

const (
	StageIntro Stage = iota
	StageTechnical
	StageTeamwork
	StageProblemSolving
)

func (s Stage) String() string {
	switch s {
	case StageIntro:
		return "intro"
	case StageTechnical:
		return "technical"
	case StageTeamwork:
		return "teamwork"
	default:
		return "problem_solving"
	}
}

// StageFor maps a zero-based question index onto a stage. Indices past the
// last stage stay on problem solving.
func StageFor(index int) Stage {
	switch {
	case index <= 0:
		return StageIntro
	case index == 1:
		return StageTechnical
	case index == 2:
		return StageTeamwork
	default:
		return StageProblemSolving
	}
}

// rolePlaceholder is replaced with the user's job position in stage pools.
const rolePlaceholder = "{role}"

var stagePools = map[Stage][]string{
	StageIntro: {
		"Cuéntame sobre ti y por qué te interesa el puesto de {role}.",
		"¿Qué experiencia previa te prepara para trabajar como {role}?",
		"¿Qué te motivó a postularte como {role} en este momento de tu carrera?",
		"Describe en pocas palabras tu trayectoria y qué aportarías como {role}.",
	},
	StageTechnical: {
		"¿Cuáles consideras que son las habilidades más importantes para un {role} y cómo las has aplicado?",
		"Háblame de una herramienta o método que uses a diario como {role} y por qué lo eliges.",
		"¿Cómo te mantienes actualizado en los conocimientos que exige el rol de {role}?",
	},
	StageTeamwork: {
		"Cuéntame de una vez en que tuviste un desacuerdo con un compañero. ¿Cómo lo resolviste?",
		"Describe un proyecto en equipo del que te sientas orgulloso y cuál fue tu aporte.",
		"¿Cómo manejas la comunicación con personas de otras áreas cuando trabajas como {role}?",
		"Háblame de una ocasión en que tuviste que apoyar a un compañero bajo presión.",
	},
	StageProblemSolving: {
		"Describe un problema difícil que enfrentaste en tu trabajo y los pasos que seguiste para resolverlo.",
		"Cuéntame de una situación en la que algo salió mal. ¿Qué aprendiste?",
		"Si tuvieras que priorizar varias tareas urgentes como {role}, ¿cómo decidirías por dónde empezar?",
		"Háblame de una decisión que tomaste con información incompleta y cuál fue el resultado.",
	},
}

var staticTechnical = map[Category][]string{
	CategorySoftware: {
		"¿Cómo diseñarías una API que deba soportar miles de peticiones por minuto?",
		"Explica cómo abordas la depuración de un error que solo ocurre en producción.",
		"¿Qué prácticas sigues para asegurar la calidad de tu código antes de entregarlo?",
	},
	CategoryMarketing: {
		"¿Cómo medirías el éxito de una campaña digital con un presupuesto limitado?",
		"Describe cómo construirías una estrategia de contenido para una marca nueva.",
		"¿Qué métricas revisas primero cuando una campaña no está dando resultados?",
	},
	CategoryDesign: {
		"Explica tu proceso de diseño desde la investigación hasta la entrega final.",
		"¿Cómo validas una propuesta de diseño con usuarios reales?",
		"¿Cómo manejas comentarios contradictorios de distintos interesados sobre un diseño?",
	},
	CategorySales: {
		"¿Cómo manejas una objeción de precio de un cliente potencial?",
		"Describe tu proceso para calificar y dar seguimiento a un prospecto.",
		"¿Qué haces cuando estás lejos de alcanzar tu meta a mitad de mes?",
	},
	CategoryPM: {
		"¿Cómo priorizas un backlog cuando todos los interesados dicen que lo suyo es urgente?",
		"Describe cómo definirías el alcance de un producto mínimo viable.",
		"¿Cómo gestionas un proyecto que se está retrasando respecto al cronograma?",
	},
	CategoryHR: {
		"¿Cómo diseñarías un proceso de selección para un puesto difícil de cubrir?",
		"Describe cómo manejarías un conflicto entre un colaborador y su jefe.",
		"¿Qué acciones propondrías para reducir la rotación de personal?",
	},
	CategoryData: {
		"¿Cómo abordas la limpieza de un conjunto de datos con valores faltantes?",
		"Explica cómo comunicarías un hallazgo de datos a un público no técnico.",
		"¿Cómo validas que un modelo o análisis no está sesgado?",
	},
	CategoryFinance: {
		"¿Cómo preparas un presupuesto anual para un área de la empresa?",
		"Explica cómo detectarías una inconsistencia en los estados financieros.",
		"¿Qué indicadores financieros revisas para evaluar la salud de un negocio?",
	},
	CategoryAdministrative: {
		"¿Cómo organizas tu agenda cuando tienes múltiples solicitudes al mismo tiempo?",
		"Describe cómo mantienes ordenada y segura la documentación de una oficina.",
		"¿Qué herramientas usas para dar seguimiento a tareas y pendientes?",
	},
	CategoryCustomerService: {
		"¿Cómo atiendes a un cliente muy molesto que exige una solución inmediata?",
		"Describe una ocasión en que superaste las expectativas de un cliente.",
		"¿Cómo manejas una situación en la que no puedes darle al cliente lo que pide?",
	},
	CategoryHospitality: {
		"¿Cómo actuarías si un huésped o comensal presenta una queja en hora pico?",
		"Describe cómo garantizas la calidad del servicio en un turno con poco personal.",
		"¿Qué haces para que un cliente quiera regresar?",
	},
	CategoryHealthcare: {
		"¿Cómo priorizas la atención cuando varios pacientes necesitan ayuda a la vez?",
		"Describe cómo explicarías un procedimiento a un paciente nervioso.",
		"¿Qué protocolos sigues para evitar errores en la atención?",
	},
	CategoryEducation: {
		"¿Cómo adaptas una clase para estudiantes con distintos ritmos de aprendizaje?",
		"Describe cómo manejarías a un grupo con problemas de disciplina.",
		"¿Cómo evalúas si tus estudiantes realmente aprendieron un tema?",
	},
	CategoryBanking: {
		"¿Cómo evaluarías el riesgo de otorgar un crédito a un cliente nuevo?",
		"Describe cómo explicarías un producto financiero complejo a un cliente.",
		"¿Qué harías si detectas una operación sospechosa?",
	},
	CategoryRetail: {
		"¿Cómo manejas una fila larga de clientes con poco personal en tienda?",
		"Describe cómo lograrías aumentar las ventas de un producto con poca rotación.",
		"¿Qué haces si un cliente quiere devolver un producto fuera de política?",
	},
	CategoryTechLead: {
		"¿Cómo equilibras la deuda técnica con la entrega de nuevas funcionalidades?",
		"Describe cómo guías a un equipo en una decisión de arquitectura difícil.",
		"¿Cómo ayudas a crecer a los desarrolladores menos experimentados de tu equipo?",
	},
}

// staticPool returns the fallback pool for a stage, with the role filled in.
// The technical stage prefers the category's own questions.
func staticPool(stage Stage, category Category, role string) []string {
	if stage == StageTechnical {
		if qs, ok := staticTechnical[category]; ok {
			return qs
		}
	}
	role = strings.TrimSpace(role)
	if role == "" {
		role = "profesional"
	}
	pool := stagePools[stage]
	out := make([]string, len(pool))
	for i, q := range pool {
		out[i] = strings.ReplaceAll(q, rolePlaceholder, role)
	}
	return out
}
