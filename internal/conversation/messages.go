package conversation

import (
	"fmt"
	"strings"

	"cvbot-backend/internal/cvanalyzer"
	"cvbot-backend/internal/payments"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/transport"
)

// Button and list ids. They travel through the transport and come back as
// Event.ButtonID, so they must stay stable.
const (
	btnAcceptTerms = "accept_terms"
	btnRejectTerms = "reject_terms"

	btnMenuCV        = "menu_cv"
	btnMenuInterview = "menu_interview"
	btnMenuPremium   = "menu_premium"
	btnMenuAdvisory  = "menu_advisory"

	btnStartInterview = "start_interview"
	btnBackToMenu     = "back_menu"
	btnNewCV          = "post_new_cv"
	btnPostInterview  = "post_interview"

	btnConfirmPayment = "confirm_payment"
	btnCancelPayment  = "cancel_payment"
)

const (
	msgWelcome = "👋 ¡Hola! Soy tu asistente de carrera. Puedo revisar tu CV y ayudarte a practicar entrevistas de trabajo."
	msgTerms   = "Antes de empezar, necesito que aceptes nuestros términos: usaremos tu CV y tus respuestas solo para darte retroalimentación y no los compartiremos con terceros. ¿Aceptas?"

	msgTermsRejected = "Entiendo. Para poder ayudarte necesito que aceptes los términos. Cuando quieras, responde *sí*."
	msgMenu          = "¿Qué te gustaría hacer?"
	msgMenuHint      = "Elige una opción del menú o escribe *1* para revisar tu CV, *2* para simular una entrevista, *3* para comprar revisiones o *4* para una asesoría."

	msgAskPositionCV        = "📝 ¿A qué puesto estás postulando? Escríbelo para adaptar la revisión de tu CV (por ejemplo: *Analista de datos*)."
	msgAskPositionInterview = "🎤 ¿Para qué puesto quieres practicar la entrevista? Escríbelo (por ejemplo: *Ejecutivo de ventas*)."
	msgAskCV                = "📄 Envíame tu CV como documento (PDF, Word o TXT) o pega un enlace público a tu archivo."
	msgCVReceived           = "✅ Recibí tu CV. Lo estoy analizando, esto puede tardar hasta 3 minutos..."
	msgCVBusy               = "⏳ Sigo analizando tu CV. Te aviso apenas termine."
	msgCVFallback           = "⚠️ No pude completar el análisis automático en este momento, pero tu CV quedó guardado aquí:\n%s\n\nPuedes intentarlo de nuevo más tarde."
	msgCVUnsupported        = "❌ Ese formato no es compatible. Envía tu CV en PDF, Word (DOC/DOCX), TXT, RTF o como imagen JPG/PNG."
	msgCVTooLarge           = "❌ El archivo supera el límite de 20 MB. Envía una versión más liviana."
	msgCVFailed             = "❌ No pude descargar tu archivo. Inténtalo de nuevo o envíalo en otro formato."
	msgPostCV               = "¿Qué quieres hacer ahora?"

	msgPaywall = "🔒 Ya usaste tu revisión gratuita y no tienes revisiones disponibles. Elige un paquete para continuar:"

	msgInterviewConfirm   = "Practicaremos una entrevista para *%s*. Te haré %d preguntas y deberás responder cada una con una nota de voz o un video. ¿Empezamos?"
	msgInterviewIntro     = "🎬 ¡Comencemos! Responde cada pregunta con una nota de voz o un video corto (1 a 2 minutos)."
	msgInterviewPreparing = "⏳ Estoy preparando tu pregunta, dame un momento..."
	msgQuestion           = "❓ *Pregunta %d de %d*\n%s"
	msgAnswerReminder     = "🎙️ Responde la pregunta con una nota de voz o un video."
	msgAnswerProcessing   = "⏳ Estoy evaluando tu respuesta..."
	msgInterviewGuard     = "⚠️ Tienes una entrevista en curso. Termínala o escribe *!reset* si quieres empezar de nuevo."

	msgPackages         = "💼 Elige el paquete de revisiones que prefieras:"
	msgAdvisories       = "🧑‍💼 Elige el tipo de asesoría:"
	msgPaymentCancelled = "Pago cancelado. Volvemos al menú."
	msgSendScreenshot   = "📸 Envía una captura del comprobante de pago para verificarlo."
	msgVerifying        = "🔎 Estoy verificando tu comprobante..."
	msgLedgerFailed     = "❌ Verificamos tu pago pero no pudimos registrarlo. Envía la captura nuevamente en unos minutos."

	msgPackageChosen   = "Elegiste *%s* por *%s*. ¿Confirmas la compra?"
	msgAdvisoryChosen  = "Elegiste *%s* por *%s*.\n%s\n¿Confirmas la compra?"
	msgPayTo           = "💳 Realiza el pago de *%s* a nombre de *%s*."
	msgPaymentOK       = "🎉 ¡Pago verificado! Se agregaron %d revisiones. Ahora tienes %d disponibles."
	msgAdvisoryOK      = "🎉 ¡Pago verificado! Reserva tu asesoría *%s* aquí: %s"
	msgAdvisoryPending = "🎉 ¡Pago verificado! Te escribiremos pronto para agendar tu asesoría *%s*."
	msgAfterPayment    = "Cuando quieras, elige una opción del menú o envía tu CV."

	msgHelp = "ℹ️ *Comandos disponibles*\n" +
		"*!start* reinicia la conversación\n" +
		"*!reset* borra tu progreso y vuelve al inicio\n" +
		"*!pdf* vuelve a enviarte tu último informe\n" +
		"*!promo CÓDIGO* canjea un código promocional\n" +
		"*!help* muestra esta ayuda"
	msgReset         = "🔄 Listo, reiniciamos tu sesión."
	msgNoReport      = "Aún no tienes un informe. Envía tu CV para generar uno."
	msgPromoUsage    = "Escribe el código así: *!promo TUCODIGO*"
	msgPromoOK       = "🎉 ¡Código *%s* activado! Ahora tienes revisiones ilimitadas."
	msgPromoUnknown  = "❌ Ese código promocional no es válido."
	msgPromoConflict = "Ya canjeaste el código *%s*. Solo se permite un código por usuario."
	msgUnsupported   = "No puedo procesar ese tipo de mensaje aquí."
	msgApology       = "😓 Lo siento, ocurrió un error inesperado. Inténtalo de nuevo o escribe *!reset* para reiniciar."
)

func termsButtons() []transport.Button {
	return []transport.Button{
		{ID: btnAcceptTerms, Title: "Sí, acepto"},
		{ID: btnRejectTerms, Title: "No"},
	}
}

func menuRows() []transport.ListRow {
	return []transport.ListRow{
		{ID: btnMenuCV, Title: "Revisar mi CV", Description: "Análisis detallado con puntaje y recomendaciones"},
		{ID: btnMenuInterview, Title: "Simular entrevista", Description: "Practica con preguntas para tu puesto"},
		{ID: btnMenuPremium, Title: "Comprar revisiones", Description: "Paquetes de revisiones adicionales"},
		{ID: btnMenuAdvisory, Title: "Asesoría personalizada", Description: "Sesión 1 a 1 con un especialista"},
	}
}

func postCVButtons() []transport.Button {
	return []transport.Button{
		{ID: btnPostInterview, Title: "Simular entrevista"},
		{ID: btnNewCV, Title: "Revisar otro CV"},
		{ID: btnBackToMenu, Title: "Menú principal"},
	}
}

func confirmInterviewButtons() []transport.Button {
	return []transport.Button{
		{ID: btnStartInterview, Title: "Empezar"},
		{ID: btnBackToMenu, Title: "Ahora no"},
	}
}

func confirmPaymentButtons() []transport.Button {
	return []transport.Button{
		{ID: btnConfirmPayment, Title: "Confirmar"},
		{ID: btnCancelPayment, Title: "Cancelar"},
	}
}

func packageRows(cat payments.Catalog) []transport.ListRow {
	rows := make([]transport.ListRow, 0, len(cat.Packages))
	for _, p := range cat.Packages {
		rows = append(rows, transport.ListRow{ID: p.ID, Title: reviewsLabel(p.Reviews), Description: cat.FormatPrice(p.Price)})
	}
	return rows
}

func advisoryRows(cat payments.Catalog) []transport.ListRow {
	rows := make([]transport.ListRow, 0, len(cat.Advisories))
	for _, a := range cat.Advisories {
		rows = append(rows, transport.ListRow{ID: a.ID, Title: a.Name, Description: cat.FormatPrice(a.Price) + " · " + a.Description})
	}
	return rows
}

// analysisMessage renders a short chat summary of an analysis.
func analysisMessage(r *cvanalyzer.Result, reportURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Resultado de tu CV: %d/10*\n\n", r.Score)
	if r.Summary != "" {
		b.WriteString(r.Summary)
		b.WriteString("\n")
	}
	if len(r.Recommendations) > 0 {
		b.WriteString("\n*Recomendaciones principales:*\n")
		for i, rec := range r.Recommendations {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "• %s\n", rec)
		}
	}
	if len(r.MissingSkills) > 0 {
		n := len(r.MissingSkills)
		if n > 5 {
			n = 5
		}
		fmt.Fprintf(&b, "\n*Habilidades a reforzar:* %s\n", strings.Join(r.MissingSkills[:n], ", "))
	}
	fmt.Fprintf(&b, "\n📎 Informe completo: %s", reportURL)
	return b.String()
}

// previousAnalysis is the compact text kept on the session for later context.
func previousAnalysis(r *cvanalyzer.Result) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("Puntaje %d/10. %s", r.Score, r.Summary)
}

func feedbackMessage(index, total int, a session.AnswerAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📝 *Respuesta %d de %d: %d/10*\n%s\n", index+1, total, a.Score, a.Summary)
	writeList(&b, "✅ Fortalezas", a.Strengths)
	writeList(&b, "⚠️ A mejorar", a.Weaknesses)
	writeList(&b, "💡 Sugerencias", a.Suggestions)
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n*%s:*\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "• %s\n", it)
	}
}

func summaryMessage(avg float64, count int) string {
	verdict := "¡Buen trabajo! Sigue practicando para ganar más seguridad."
	switch {
	case avg >= 8:
		verdict = "¡Excelente desempeño! Estás listo para tu entrevista."
	case avg < 6:
		verdict = "Hay bastante por mejorar. Revisa las sugerencias y vuelve a intentarlo."
	}
	return fmt.Sprintf("🏁 *Entrevista completada*\nRespondiste %d preguntas con un promedio de *%.1f/10*.\n%s\n\nEscribe cualquier mensaje para volver al menú.", count, avg, verdict)
}
