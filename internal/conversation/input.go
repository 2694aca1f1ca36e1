package conversation

import (
	"strings"

	"cvbot-backend/internal/shared/util"
)

var (
	yesWords = []string{"si", "sí", "yes", "acepto", "ok", "claro", "dale", "de acuerdo", "empezar", "comenzar", "confirmar", "confirmo"}
	noWords  = []string{"no", "nop", "cancelar", "ahora no", "rechazo"}
)

// isYes reports whether input is an affirmative answer or an accept button.
func isYes(input string) bool {
	switch input {
	case btnAcceptTerms, btnStartInterview, btnConfirmPayment:
		return true
	}
	return matchesWord(input, yesWords)
}

func isNo(input string) bool {
	switch input {
	case btnRejectTerms, btnBackToMenu, btnCancelPayment:
		return true
	}
	return matchesWord(input, noWords)
}

func matchesWord(input string, words []string) bool {
	folded := util.FoldText(input)
	if folded == "" {
		return false
	}
	for _, w := range words {
		if folded == util.FoldText(w) || strings.HasPrefix(folded, util.FoldText(w)+" ") {
			return true
		}
	}
	return false
}

// menuChoice maps typed text or a list reply onto a menu option id.
func menuChoice(input string) string {
	switch input {
	case btnMenuCV, btnMenuInterview, btnMenuPremium, btnMenuAdvisory:
		return input
	}
	folded := util.FoldText(input)
	switch {
	case folded == "1" || strings.Contains(folded, "cv") || strings.Contains(folded, "curriculum") || strings.Contains(folded, "revisar"):
		return btnMenuCV
	case folded == "2" || strings.Contains(folded, "entrevista") || strings.Contains(folded, "interview"):
		return btnMenuInterview
	case folded == "3" || strings.Contains(folded, "comprar") || strings.Contains(folded, "paquete") || strings.Contains(folded, "premium"):
		return btnMenuPremium
	case folded == "4" || strings.Contains(folded, "asesor"):
		return btnMenuAdvisory
	}
	return ""
}

// cleanPosition validates a free-text job position.
func cleanPosition(input string) (string, bool) {
	p := strings.Join(strings.Fields(input), " ")
	if len([]rune(p)) < 2 || len([]rune(p)) > 120 {
		return "", false
	}
	if strings.HasPrefix(p, "!") {
		return "", false
	}
	return p, true
}

// looksLikeURL reports whether text is a bare http(s) link.
func looksLikeURL(text string) bool {
	t := strings.TrimSpace(text)
	return (strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://")) && !strings.ContainsAny(t, " \n")
}
